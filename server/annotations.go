package server

// ToolAnnotations carries behavioral hints a client can read without
// invoking the tool. Absent hints fall back to the conservative
// defaults: not read-only, possibly destructive, not idempotent, open
// world.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// ResourceAnnotations hints at who a resource is for ("user" or
// "assistant") and how important it is relative to its peers.
type ResourceAnnotations struct {
	Audience []string `json:"audience,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

// PromptAnnotations is the prompt counterpart of ResourceAnnotations.
type PromptAnnotations struct {
	Audience []string `json:"audience,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

// Bool returns a pointer to v, for optional annotation fields.
func Bool(v bool) *bool {
	return &v
}

// Float returns a pointer to v, for optional annotation fields.
func Float(v float64) *float64 {
	return &v
}

// annot returns the tool's annotations, allocating on first use.
func (b *ToolBuilder) annot() *ToolAnnotations {
	if b.tool.annotations == nil {
		b.tool.annotations = &ToolAnnotations{}
	}
	return b.tool.annotations
}

// ReadOnly marks the tool as side-effect free. Implies not destructive.
func (b *ToolBuilder) ReadOnly() *ToolBuilder {
	if b.err != nil {
		return b
	}
	a := b.annot()
	a.ReadOnlyHint = Bool(true)
	a.DestructiveHint = Bool(false)
	return b
}

// Destructive marks the tool as potentially destructive.
func (b *ToolBuilder) Destructive() *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.annot().DestructiveHint = Bool(true)
	return b
}

// Idempotent marks repeated calls with the same input as equivalent to
// one call.
func (b *ToolBuilder) Idempotent() *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.annot().IdempotentHint = Bool(true)
	return b
}

// OpenWorld marks the tool as reaching systems outside the host.
func (b *ToolBuilder) OpenWorld() *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.annot().OpenWorldHint = Bool(true)
	return b
}

// ClosedWorld marks the tool as confined to the host environment.
func (b *ToolBuilder) ClosedWorld() *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.annot().OpenWorldHint = Bool(false)
	return b
}

// Title sets a human-readable title for the tool.
func (b *ToolBuilder) Title(title string) *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.annot().Title = title
	return b
}

// Annotations replaces the tool's annotations wholesale.
func (b *ToolBuilder) Annotations(annotations ToolAnnotations) *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.tool.annotations = &annotations
	return b
}

func (b *ResourceBuilder) annot() *ResourceAnnotations {
	if b.resource.annotations == nil {
		b.resource.annotations = &ResourceAnnotations{}
	}
	return b.resource.annotations
}

// Audience declares who the resource content is for, "user" or
// "assistant".
func (b *ResourceBuilder) Audience(audience ...string) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.annot().Audience = audience
	return b
}

// Priority sets the resource's relative priority, 0.0 to 1.0.
func (b *ResourceBuilder) Priority(priority float64) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.annot().Priority = Float(priority)
	return b
}

// Annotate replaces the resource's annotations wholesale.
func (b *ResourceBuilder) Annotate(annotations ResourceAnnotations) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.resource.annotations = &annotations
	return b
}

func (b *PromptBuilder) annot() *PromptAnnotations {
	if b.prompt.annotations == nil {
		b.prompt.annotations = &PromptAnnotations{}
	}
	return b.prompt.annotations
}

// Audience declares who the prompt result is for.
func (b *PromptBuilder) Audience(audience ...string) *PromptBuilder {
	if b.err != nil {
		return b
	}
	b.annot().Audience = audience
	return b
}

// Priority sets the prompt's relative priority, 0.0 to 1.0.
func (b *PromptBuilder) Priority(priority float64) *PromptBuilder {
	if b.err != nil {
		return b
	}
	b.annot().Priority = Float(priority)
	return b
}

// Annotate replaces the prompt's annotations wholesale.
func (b *PromptBuilder) Annotate(annotations PromptAnnotations) *PromptBuilder {
	if b.err != nil {
		return b
	}
	b.prompt.annotations = &annotations
	return b
}
