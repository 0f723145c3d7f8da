package main

import (
	"github.com/mailtriage/mailtriage/internal/logger"
	"github.com/mailtriage/mailtriage/rules"
)

// Effect is one host-side action requested by the engine during a pass.
// The mailbox itself lives in the caller, so apart from score adjustments
// (persisted server-side) the server only records what was requested and
// hands the list back in the pass response.
type Effect struct {
	Type   string         `json:"type"`
	Target string         `json:"target,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// effectRecorder implements rules.Hooks for one pass. It is not safe for
// reuse across passes; the process handler creates a fresh one per request.
type effectRecorder struct {
	scores  rules.SenderScoreStore
	effects []Effect
	logs    []string
}

func newEffectRecorder(scores rules.SenderScoreStore) *effectRecorder {
	return &effectRecorder{scores: scores}
}

func (r *effectRecorder) record(effect Effect) {
	r.effects = append(r.effects, effect)
}

func (r *effectRecorder) OpenURL(url string) error {
	r.record(Effect{Type: "open_url", Target: url})
	return nil
}

func (r *effectRecorder) AdjustScore(senderEmail string, amount float64) error {
	newScore, err := r.scores.Adjust(senderEmail, amount)
	if err != nil {
		return err
	}
	r.record(Effect{Type: "adjust_score", Target: senderEmail,
		Params: map[string]any{"amount": amount, "newScore": newScore}})
	return nil
}

func (r *effectRecorder) MarkEmail(emailID, flag string) error {
	r.record(Effect{Type: "mark_email", Target: emailID,
		Params: map[string]any{"flag": flag}})
	return nil
}

func (r *effectRecorder) Notify(title, body string) error {
	r.record(Effect{Type: "notify",
		Params: map[string]any{"title": title, "body": body}})
	return nil
}

func (r *effectRecorder) DeleteEmail(emailID string) error {
	r.record(Effect{Type: "delete_email", Target: emailID})
	return nil
}

func (r *effectRecorder) MarkAsRead(emailID string) error {
	r.record(Effect{Type: "mark_as_read", Target: emailID})
	return nil
}

func (r *effectRecorder) RequestSummary(emailID string) error {
	r.record(Effect{Type: "request_summary", Target: emailID})
	return nil
}

func (r *effectRecorder) Log(message string) {
	r.logs = append(r.logs, message)
	logger.Debug("rule log", "message", message)
}
