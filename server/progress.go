package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rubyonai/mcpwire/protocol"
)

// ProgressToken correlates progress notifications with the request
// that asked for them.
type ProgressToken string

// Progress is one update for a long-running operation.
type Progress struct {
	// Progress must increase with each update.
	Progress float64 `json:"progress"`
	// Total is omitted when the end is unknown.
	Total *float64 `json:"total,omitempty"`
	// Message describes the current state.
	Message string `json:"message,omitempty"`
}

// ProgressReporter lets handlers emit progress notifications.
type ProgressReporter interface {
	// Report sends an update. Values must increase between calls.
	Report(progress float64, total *float64) error
	// ReportWithMessage is Report with a state description.
	ReportWithMessage(progress float64, total *float64, message string) error
	// Token returns the token, or "" when progress was not requested.
	Token() ProgressToken
}

// NotificationSender sends JSON-RPC notifications back to the client.
type NotificationSender interface {
	SendNotification(method string, params any) error
}

// NewProgressReporter builds a reporter bound to one token and sender.
// With an empty token or nil sender the reporter silently drops
// updates, so handlers never need to branch on whether the client
// asked for progress.
func NewProgressReporter(token ProgressToken, notifier NotificationSender) ProgressReporter {
	return &progressReporter{token: token, notifier: notifier}
}

type progressReporter struct {
	token    ProgressToken
	notifier NotificationSender

	mu   sync.Mutex
	last float64
}

func (p *progressReporter) Token() ProgressToken {
	return p.token
}

func (p *progressReporter) Report(progress float64, total *float64) error {
	return p.ReportWithMessage(progress, total, "")
}

func (p *progressReporter) ReportWithMessage(progress float64, total *float64, message string) error {
	if p.token == "" || p.notifier == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Updates must be monotonic; nudge regressions forward.
	if progress <= p.last {
		progress = p.last + 0.1
	}
	p.last = progress

	params := map[string]any{
		"progressToken": string(p.token),
		"progress":      progress,
	}
	if total != nil {
		params["total"] = *total
	}
	if message != "" {
		params["message"] = message
	}
	return p.notifier.SendNotification(protocol.MethodProgress, params)
}

type progressContextKey struct{}

// ContextWithProgress attaches a reporter to the context.
func ContextWithProgress(ctx context.Context, reporter ProgressReporter) context.Context {
	return context.WithValue(ctx, progressContextKey{}, reporter)
}

// ProgressFromContext returns the attached reporter, or an inert one.
func ProgressFromContext(ctx context.Context) ProgressReporter {
	if reporter, ok := ctx.Value(progressContextKey{}).(ProgressReporter); ok {
		return reporter
	}
	return noopProgressReporter{}
}

type noopProgressReporter struct{}

func (noopProgressReporter) Report(float64, *float64) error                    { return nil }
func (noopProgressReporter) ReportWithMessage(float64, *float64, string) error { return nil }
func (noopProgressReporter) Token() ProgressToken                              { return "" }

// ExtractProgressToken reads the _meta.progressToken field clients use
// to request progress updates for a call.
func ExtractProgressToken(params json.RawMessage) ProgressToken {
	if len(params) == 0 {
		return ""
	}
	var envelope struct {
		Meta struct {
			ProgressToken string `json:"progressToken"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(params, &envelope); err != nil {
		return ""
	}
	return ProgressToken(envelope.Meta.ProgressToken)
}
