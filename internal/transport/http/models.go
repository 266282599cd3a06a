package httptransport

import (
	"onboard/internal/audit"
	"onboard/internal/callback"
	"onboard/internal/orchestrator"
)

const TypeURLVerification = "url_verification"

// CallbackEnvelope is the body the chat platform posts to /callbacks.
type CallbackEnvelope struct {
	Type      string          `json:"type"`
	Token     string          `json:"token"`
	Challenge string          `json:"challenge,omitempty"`
	Event     *callback.Event `json:"event,omitempty"`
}

type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

type CallbackResponse struct {
	Toast callback.Ack `json:"toast"`
}

type AuditResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

type CheckResponse struct {
	Pending int      `json:"pending"`
	New     int      `json:"new"`
	Pushed  []string `json:"pushed"`
	Error   string   `json:"error,omitempty"`
}

func FromReport(r orchestrator.Report) CheckResponse {
	pushed := r.Pushed
	if pushed == nil {
		pushed = []string{}
	}
	return CheckResponse{Pending: r.Pending, New: r.New, Pushed: pushed}
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
