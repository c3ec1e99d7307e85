package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubyonai/mcpwire/protocol"
)

// Root represents a root directory or URI that a session is aware of.
// Roots define the boundaries of the workspace that file operations can
// touch.
type Root struct {
	// URI is the root URI (typically a file:// URI).
	URI string `json:"uri"`
	// Name is an optional human-readable name for the root.
	Name string `json:"name,omitempty"`
}

// ListRootsResult is the response from a roots/list request.
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// RootsClient is an interface for clients that support roots.
type RootsClient interface {
	// ListRoots requests the list of root directories from the client.
	ListRoots() (*ListRootsResult, error)
}

// Errors returned by filesystem root operations.
var (
	ErrPathOutsideRoot = errors.New("path escapes root")
	ErrRootReadOnly    = errors.New("root is read-only")
)

// RootOption configures a FileRoot.
type RootOption func(*FileRoot)

// WithRootReadOnly rejects writes through the root.
func WithRootReadOnly() RootOption {
	return func(r *FileRoot) {
		r.readOnly = true
	}
}

// FileRoot is a named directory subtree the server exposes for file
// operations. Every path is resolved against the base directory, and
// paths that escape it are rejected before any filesystem access.
type FileRoot struct {
	name     string
	baseDir  string
	readOnly bool
}

// NewFileRoot creates a filesystem root anchored at dir. The directory is
// made absolute at construction so later working-directory changes cannot
// move the boundary.
func NewFileRoot(name, dir string, opts ...RootOption) (*FileRoot, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root dir: %w", err)
	}

	r := &FileRoot{
		name:    name,
		baseDir: abs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name returns the root name.
func (r *FileRoot) Name() string {
	return r.name
}

// Dir returns the absolute base directory.
func (r *FileRoot) Dir() string {
	return r.baseDir
}

// ReadOnly reports whether writes through the root are rejected.
func (r *FileRoot) ReadOnly() bool {
	return r.readOnly
}

// Describe returns the wire entry for roots/list.
func (r *FileRoot) Describe() Root {
	return Root{
		URI:  "file://" + filepath.ToSlash(r.baseDir),
		Name: r.name,
	}
}

// resolve maps a relative path inside the root to an absolute path.
// Absolute inputs and paths that escape the base directory fail with
// ErrPathOutsideRoot. filepath.Join cleans ".." segments, so the prefix
// check runs on the final resolved path.
func (r *FileRoot) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q: %w", rel, ErrPathOutsideRoot)
	}

	abs := filepath.Join(r.baseDir, rel)
	if abs != r.baseDir && !strings.HasPrefix(abs, r.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrPathOutsideRoot)
	}
	return abs, nil
}

// ReadFile reads a file inside the root.
func (r *FileRoot) ReadFile(rel string) ([]byte, error) {
	abs, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// WriteFile writes a file inside the root, creating parent directories as
// needed. Writes on a read-only root fail with ErrRootReadOnly.
func (r *FileRoot) WriteFile(rel string, data []byte) error {
	abs, err := r.resolve(rel)
	if err != nil {
		return err
	}
	if r.readOnly {
		return fmt.Errorf("root %q: %w", r.name, ErrRootReadOnly)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0o644)
}

// RootEntry describes one directory entry inside a root.
type RootEntry struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
	Size int64  `json:"size"`
}

// ListDir lists the entries of a directory inside the root. Entries that
// vanish between the directory read and the stat are skipped.
func (r *FileRoot) ListDir(rel string) ([]RootEntry, error) {
	abs, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	result := make([]RootEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		result = append(result, RootEntry{
			Name: e.Name(),
			Dir:  e.IsDir(),
			Size: info.Size(),
		})
	}
	return result, nil
}

// ReadRootFile reads a file inside the named root after authorization.
func (s *Server) ReadRootFile(ctx context.Context, rootName, rel string) ([]byte, error) {
	root, ok := s.GetRoot(rootName)
	if !ok {
		return nil, protocol.NewRootNotFoundError(rootName)
	}
	if !s.Authorized(ctx, KindRoot, rootName) {
		return nil, protocol.NewUnauthorized("root access denied")
	}
	return root.ReadFile(rel)
}

// WriteRootFile writes a file inside the named root after authorization.
func (s *Server) WriteRootFile(ctx context.Context, rootName, rel string, data []byte) error {
	root, ok := s.GetRoot(rootName)
	if !ok {
		return protocol.NewRootNotFoundError(rootName)
	}
	if !s.Authorized(ctx, KindRoot, rootName) {
		return protocol.NewUnauthorized("root access denied")
	}
	return root.WriteFile(rel, data)
}

// ListRootDir lists a directory inside the named root after authorization.
func (s *Server) ListRootDir(ctx context.Context, rootName, rel string) ([]RootEntry, error) {
	root, ok := s.GetRoot(rootName)
	if !ok {
		return nil, protocol.NewRootNotFoundError(rootName)
	}
	if !s.Authorized(ctx, KindRoot, rootName) {
		return nil, protocol.NewUnauthorized("root access denied")
	}
	return root.ListDir(rel)
}
