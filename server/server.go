// Package server provides the core MCP server implementation.
package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rubyonai/mcpwire/protocol"
)

// ErrAlreadyExists is returned when a tool, resource, prompt or root is
// registered under a key that is already taken. The original registration
// is kept.
var ErrAlreadyExists = errors.New("already exists")

// Info contains server metadata exposed to clients.
type Info struct {
	Name         string
	Version      string
	Capabilities Capabilities
}

// Capabilities declares what features the server supports.
type Capabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
	Roots     bool `json:"roots"`
	Logging   bool `json:"logging"`
}

// Manifest represents the server manifest returned to clients.
type Manifest struct {
	Name            string       `json:"name"`
	Version         string       `json:"version"`
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ToolInfo represents metadata about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema any
	Annotations *ToolAnnotations
}

// Option configures a Server.
type Option func(*Server)

// Server is the MCP server instance.
type Server struct {
	mu sync.RWMutex

	info          Info
	instructions  string
	tools         map[string]*Tool
	resources     map[string]*Resource
	resourceOrder []string
	prompts       map[string]*Prompt
	roots         map[string]*FileRoot
	middleware    []Middleware
	completions   *completionRegistry
	authorizer    Authorizer
}

// WithInstructions sets usage instructions returned to clients during
// initialization.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// New creates a new MCP server with the given info and options.
func New(info Info, opts ...Option) *Server {
	s := &Server{
		info:        info,
		tools:       make(map[string]*Tool),
		resources:   make(map[string]*Resource),
		prompts:     make(map[string]*Prompt),
		roots:       make(map[string]*FileRoot),
		completions: newCompletionRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Instructions returns the usage instructions, if any.
func (s *Server) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instructions
}

// Use registers middleware to be executed on every request.
func (s *Server) Use(middleware ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, middleware...)
}

// Middlewares returns the middleware registered via Use, in registration
// order.
func (s *Server) Middlewares() []Middleware {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Middleware, len(s.middleware))
	copy(out, s.middleware)
	return out
}

// Tool starts building a new tool with the given name.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool: &Tool{
			name: name,
		},
		server: s,
	}
}

// Tools returns info about all registered tools, ordered by name.
func (s *Server) Tools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		t := s.tools[name]
		result = append(result, ToolInfo{
			Name:        t.name,
			Description: t.description,
			InputSchema: t.inputSchema,
			Annotations: t.annotations,
		})
	}
	return result
}

// Manifest returns the server manifest for MCP initialization.
func (s *Server) Manifest() Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Manifest{
		Name:            s.info.Name,
		Version:         s.info.Version,
		ProtocolVersion: protocol.MCPVersion,
		Capabilities:    s.info.Capabilities,
	}
}

// registerTool adds a tool to the server. The first registration under a
// name wins; later ones fail with ErrAlreadyExists.
func (s *Server) registerTool(t *Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[t.name]; ok {
		return fmt.Errorf("tool %q: %w", t.name, ErrAlreadyExists)
	}
	s.tools[t.name] = t
	return nil
}

// UnregisterTool removes a tool by name. It reports whether a tool was
// removed.
func (s *Server) UnregisterTool(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[name]; !ok {
		return false
	}
	delete(s.tools, name)
	return true
}

// getTool retrieves a tool by name (internal).
func (s *Server) getTool(name string) (*Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

// GetTool retrieves a tool by name (public).
func (s *Server) GetTool(name string) (*Tool, bool) {
	return s.getTool(name)
}

// Resource starts building a new resource with the given URI template.
func (s *Server) Resource(uriTemplate string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: &Resource{
			uriTemplate: uriTemplate,
		},
		server: s,
	}
}

// Resources returns info about all registered resources in registration
// order.
func (s *Server) Resources() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ResourceInfo, 0, len(s.resourceOrder))
	for _, template := range s.resourceOrder {
		r := s.resources[template]
		result = append(result, ResourceInfo{
			URITemplate: r.uriTemplate,
			Name:        r.name,
			Description: r.description,
			MimeType:    r.mimeType,
			Annotations: r.annotations,
		})
	}
	return result
}

// ResourceTemplates returns info about registered resources whose URI
// contains template parameters, in registration order.
func (s *Server) ResourceTemplates() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ResourceInfo
	for _, template := range s.resourceOrder {
		if !strings.Contains(template, "{") {
			continue
		}
		r := s.resources[template]
		result = append(result, ResourceInfo{
			URITemplate: r.uriTemplate,
			Name:        r.name,
			Description: r.description,
			MimeType:    r.mimeType,
			Annotations: r.annotations,
		})
	}
	return result
}

// registerResource adds a resource to the server. The first registration
// under a URI template wins; later ones fail with ErrAlreadyExists.
func (s *Server) registerResource(r *Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[r.uriTemplate]; ok {
		return fmt.Errorf("resource %q: %w", r.uriTemplate, ErrAlreadyExists)
	}
	s.resources[r.uriTemplate] = r
	s.resourceOrder = append(s.resourceOrder, r.uriTemplate)
	return nil
}

// UnregisterResource removes a resource by URI template. It reports
// whether a resource was removed.
func (s *Server) UnregisterResource(uriTemplate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[uriTemplate]; !ok {
		return false
	}
	delete(s.resources, uriTemplate)
	for i, t := range s.resourceOrder {
		if t == uriTemplate {
			s.resourceOrder = append(s.resourceOrder[:i], s.resourceOrder[i+1:]...)
			break
		}
	}
	return true
}

// getResource retrieves a resource by URI template.
func (s *Server) getResource(uriTemplate string) (*Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[uriTemplate]
	return r, ok
}

// GetResource retrieves a resource by URI template (public).
func (s *Server) GetResource(uriTemplate string) (*Resource, bool) {
	return s.getResource(uriTemplate)
}

// FindResourceForURI finds a resource that matches the given URI. Exact
// template matches win over pattern matches; pattern matches are tried in
// registration order.
func (s *Server) FindResourceForURI(uri string) (*Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.resources[uri]; ok {
		return r, true
	}
	for _, template := range s.resourceOrder {
		r := s.resources[template]
		if _, ok := r.match(uri); ok {
			return r, true
		}
	}
	return nil, false
}

// Prompt starts building a new prompt with the given name.
func (s *Server) Prompt(name string) *PromptBuilder {
	return &PromptBuilder{
		prompt: &Prompt{
			name: name,
		},
		server: s,
	}
}

// Prompts returns info about all registered prompts, ordered by name.
func (s *Server) Prompts() []PromptInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.prompts))
	for name := range s.prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]PromptInfo, 0, len(names))
	for _, name := range names {
		p := s.prompts[name]
		result = append(result, PromptInfo{
			Name:        p.name,
			Description: p.description,
			Arguments:   p.arguments,
			Annotations: p.annotations,
		})
	}
	return result
}

// registerPrompt adds a prompt to the server. The first registration under
// a name wins; later ones fail with ErrAlreadyExists.
func (s *Server) registerPrompt(p *Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prompts[p.name]; ok {
		return fmt.Errorf("prompt %q: %w", p.name, ErrAlreadyExists)
	}
	s.prompts[p.name] = p
	return nil
}

// UnregisterPrompt removes a prompt by name. It reports whether a prompt
// was removed.
func (s *Server) UnregisterPrompt(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prompts[name]; !ok {
		return false
	}
	delete(s.prompts, name)
	return true
}

// getPrompt retrieves a prompt by name.
func (s *Server) getPrompt(name string) (*Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	return p, ok
}

// GetPrompt retrieves a prompt by name (public).
func (s *Server) GetPrompt(name string) (*Prompt, bool) {
	return s.getPrompt(name)
}

// RegisterRoot adds a filesystem root to the server. The first
// registration under a name wins; later ones fail with ErrAlreadyExists.
func (s *Server) RegisterRoot(root *FileRoot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roots[root.name]; ok {
		return fmt.Errorf("root %q: %w", root.name, ErrAlreadyExists)
	}
	s.roots[root.name] = root
	return nil
}

// UnregisterRoot removes a filesystem root by name. It reports whether a
// root was removed.
func (s *Server) UnregisterRoot(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roots[name]; !ok {
		return false
	}
	delete(s.roots, name)
	return true
}

// GetRoot retrieves a filesystem root by name.
func (s *Server) GetRoot(name string) (*FileRoot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roots[name]
	return r, ok
}

// Roots returns the registered filesystem roots as wire entries, ordered
// by name.
func (s *Server) Roots() []Root {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.roots))
	for name := range s.roots {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Root, 0, len(names))
	for _, name := range names {
		result = append(result, s.roots[name].Describe())
	}
	return result
}
