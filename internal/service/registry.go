package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-modulus/internal/models"
)

// ErrConfig marks a service directory whose configuration cannot be used
var ErrConfig = errors.New("invalid service configuration")

// Load problem kinds
const (
	KindWarning = "warning" // directory skipped, nothing was wrong with a declared service
	KindConfig  = "config"  // service declared but unusable
)

// LoadError records why one directory did not become a service
type LoadError struct {
	Dir     string `json:"dir"`
	Kind    string `json:"kind"`
	Message string `json:"error"`
	err     error
}

func (e *LoadError) Error() string {
	return e.Dir + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.err
}

// Entry is one mounted service. Descriptor is never modified after loading.
type Entry struct {
	Descriptor models.ServiceDescriptor
	Dir        string          // absolute service directory
	Code       CodeService     // set for code-defined services
	Proxy      gin.HandlerFunc // set when the proxy variant is available
}

// PayloadPath returns the file holding a variant's payload
func (e *Entry) PayloadPath(variantID string) string {
	return filepath.Join(e.Dir, variantID+".json")
}

// Summary returns the listing form of the descriptor
func (e *Entry) Summary() models.ServiceSummary {
	return models.ServiceSummary{
		Name:             e.Descriptor.Name,
		Description:      e.Descriptor.Description,
		Kind:             e.Descriptor.Kind,
		DefaultVariantID: e.Descriptor.DefaultVariantID,
		MountPath:        e.Descriptor.MountPath,
		VariantCount:     len(e.Descriptor.Variants),
		Stateful:         e.Descriptor.UniqueKey != nil,
	}
}

// Mount registers the entry's routes on group. Config services are served by
// handler; code services register their own routes.
func (e *Entry) Mount(group *gin.RouterGroup, handler gin.HandlerFunc) (err error) {
	// gin panics on conflicting or malformed routes
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to mount %s: %v", e.Descriptor.MountPath, r)
		}
	}()

	if e.Code != nil {
		e.Code.Register(group)
		return nil
	}

	group.Handle(e.Descriptor.Method, GinPath(e.Descriptor.Path), handler)
	return nil
}

var braceParam = regexp.MustCompile(`\{([^}/]+)\}`)

// GinPath converts {param} segments to gin's :param form
func GinPath(p string) string {
	return braceParam.ReplaceAllString(p, ":$1")
}

// Registry is the immutable result of a load
type Registry struct {
	root    string
	entries []*Entry
	byDir   map[string]*Entry
	errors  []*LoadError
}

func newRegistry(root string) *Registry {
	return &Registry{
		root:  root,
		byDir: make(map[string]*Entry),
	}
}

func (r *Registry) add(dirName string, e *Entry) {
	r.entries = append(r.entries, e)
	r.byDir[dirName] = e
}

// Root returns the directory the registry was loaded from
func (r *Registry) Root() string {
	return r.root
}

// Len returns the number of loaded services
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns all services in directory order
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get finds a service by directory name, then by descriptor name
func (r *Registry) Get(name string) (*Entry, bool) {
	if e, ok := r.byDir[name]; ok {
		return e, true
	}
	for _, e := range r.entries {
		if e.Descriptor.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Summaries returns the listing form of every service
func (r *Registry) Summaries() []models.ServiceSummary {
	out := make([]models.ServiceSummary, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Summary())
	}
	return out
}

// Errors returns the problems found while loading
func (r *Registry) Errors() []*LoadError {
	out := make([]*LoadError, len(r.errors))
	copy(out, r.errors)
	return out
}
