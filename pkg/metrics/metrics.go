package metrics

import (
	"strconv"
	"sync/atomic"
	"time"
)

var (
	startTime         = time.Now()
	eventsReceived    atomic.Uint64
	messagesRelayed   atomic.Uint64
	convergenceRuns   atomic.Uint64
	convergenceErrors atomic.Uint64
	recoveryAttempts  atomic.Uint64
	recoveryGiveUps   atomic.Uint64
	sessionWorking    atomic.Int64
)

func IncEventsReceived() {
	eventsReceived.Add(1)
}

func IncMessagesRelayed() {
	messagesRelayed.Add(1)
}

func IncConvergenceRuns() {
	convergenceRuns.Add(1)
}

func IncConvergenceErrors() {
	convergenceErrors.Add(1)
}

func IncRecoveryAttempts() {
	recoveryAttempts.Add(1)
}

func IncRecoveryGiveUps() {
	recoveryGiveUps.Add(1)
}

// SetSessionWorking records whether the managed session is currently WORKING.
func SetSessionWorking(working bool) {
	if working {
		sessionWorking.Store(1)
	} else {
		sessionWorking.Store(0)
	}
}

func UptimeSeconds() float64 {
	return time.Since(startTime).Seconds()
}

// Prometheus text exposition (very small set of gauges/counters)
func PrometheusText() string {
	return "# HELP relay_webhook_events_received_total Total webhook deliveries accepted from the gateway\n" +
		"# TYPE relay_webhook_events_received_total counter\n" +
		"relay_webhook_events_received_total " + formatUint(eventsReceived.Load()) + "\n" +
		"# HELP relay_messages_relayed_total Total messages forwarded to the AI backend\n" +
		"# TYPE relay_messages_relayed_total counter\n" +
		"relay_messages_relayed_total " + formatUint(messagesRelayed.Load()) + "\n" +
		"# HELP relay_webhook_convergence_runs_total Webhook convergence attempts\n" +
		"# TYPE relay_webhook_convergence_runs_total counter\n" +
		"relay_webhook_convergence_runs_total " + formatUint(convergenceRuns.Load()) + "\n" +
		"# HELP relay_webhook_convergence_errors_total Convergence runs that exhausted every strategy\n" +
		"# TYPE relay_webhook_convergence_errors_total counter\n" +
		"relay_webhook_convergence_errors_total " + formatUint(convergenceErrors.Load()) + "\n" +
		"# HELP relay_recovery_attempts_total Error recovery actions executed\n" +
		"# TYPE relay_recovery_attempts_total counter\n" +
		"relay_recovery_attempts_total " + formatUint(recoveryAttempts.Load()) + "\n" +
		"# HELP relay_recovery_give_ups_total Recovery attempts suppressed after the per-kind budget ran out\n" +
		"# TYPE relay_recovery_give_ups_total counter\n" +
		"relay_recovery_give_ups_total " + formatUint(recoveryGiveUps.Load()) + "\n" +
		"# HELP relay_session_working Whether the managed session is WORKING\n" +
		"# TYPE relay_session_working gauge\n" +
		"relay_session_working " + formatInt(sessionWorking.Load()) + "\n" +
		"# HELP relay_uptime_seconds Process uptime in seconds\n" +
		"# TYPE relay_uptime_seconds gauge\n" +
		"relay_uptime_seconds " + formatFloat(UptimeSeconds()) + "\n"
}

func formatUint(v uint64) string { return formatFloat(float64(v)) }
func formatInt(v int64) string   { return formatFloat(float64(v)) }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
