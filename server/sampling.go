package server

// Sampling lets the server ask the client's LLM for a completion. The
// request travels over the same connection as everything else; the
// client answers with a CreateMessageResult.

// Role identifies who authored a sampling message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SamplingMessage is one turn of the conversation sent for completion.
type SamplingMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// Content is a single block of message content, either text or a
// base64-encoded image.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// NewTextContent builds a text content block.
func NewTextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// NewImageContent builds an image content block from base64 data.
func NewImageContent(mimeType, data string) Content {
	return Content{Type: "image", MimeType: mimeType, Data: data}
}

// CreateMessageRequest asks the client for an LLM completion.
// IncludeContext is "none", "thisServer" or "allServers".
type CreateMessageRequest struct {
	Messages         []SamplingMessage `json:"messages"`
	MaxTokens        int               `json:"maxTokens"`
	StopSequences    []string          `json:"stopSequences,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	IncludeContext   string            `json:"includeContext,omitempty"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// ModelPreferences steers the client's model choice. Priorities range
// from 0 to 1; hints are matched by substring against model names.
type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         *float64    `json:"costPriority,omitempty"`
	SpeedPriority        *float64    `json:"speedPriority,omitempty"`
	IntelligencePriority *float64    `json:"intelligencePriority,omitempty"`
}

// ModelHint suggests a model by name.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// CreateMessageResult is the client's completion. StopReason is
// "endTurn", "stopSequence" or "maxTokens".
type CreateMessageResult struct {
	Role       Role    `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model"`
	StopReason string  `json:"stopReason,omitempty"`
}

// SamplingClient is implemented by clients able to serve completions.
type SamplingClient interface {
	CreateMessage(req *CreateMessageRequest) (*CreateMessageResult, error)
}
