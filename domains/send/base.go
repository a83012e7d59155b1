package send

type TextRequest struct {
	ChatID string `json:"chat_id" form:"chat_id"`
	Text   string `json:"text" form:"text"`
}

type TextResponse struct {
	Delivered bool `json:"delivered"`
}

type SeenRequest struct {
	ChatID string `json:"chat_id" form:"chat_id"`
}

type ISendUsecase interface {
	SendText(request TextRequest) (*TextResponse, error)
	MarkSeen(request SeenRequest) error
}
