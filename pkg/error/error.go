package error

// Typed relay errors so callers can branch on failure class without string
// matching at the call site.

type GenericError struct {
	Message string
	Code    string
}

func (e GenericError) Error() string {
	return e.Message
}

func WebhookError(message string) error {
	return GenericError{Message: message, Code: "WEBHOOK_ERROR"}
}

func SessionError(message string) error {
	return GenericError{Message: message, Code: "SESSION_ERROR"}
}

func LockedError(message string) error {
	return GenericError{Message: message, Code: "SESSION_LOCKED"}
}

func IsLocked(err error) bool {
	if ge, ok := err.(GenericError); ok {
		return ge.Code == "SESSION_LOCKED"
	}
	return false
}
