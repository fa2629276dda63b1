package service

import (
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-modulus/internal/models"
)

// CodeService is a mock written in Go. It owns every route below its mount
// point and answers requests itself, without the resolution engine.
type CodeService interface {
	Register(group *gin.RouterGroup)
}

// Describer is implemented by code services that carry their own metadata.
// Non-empty fields of the entry point file take precedence.
type Describer interface {
	Describe() Metadata
}

// Metadata is the self-description of a code service
type Metadata struct {
	Name             string
	Description      string
	DefaultVariantID string
	Variants         []models.VariantMeta
}

// Catalog maps handler names used in index.yaml and proxy.yaml to Go code.
// It is filled once at startup, before the loader runs.
type Catalog struct {
	services map[string]CodeService
	proxies  map[string]gin.HandlerFunc
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		services: make(map[string]CodeService),
		proxies:  make(map[string]gin.HandlerFunc),
	}
}

// RegisterService adds a code service under a handler name
func (c *Catalog) RegisterService(name string, svc CodeService) {
	c.services[name] = svc
}

// RegisterProxy adds a proxy handler under a handler name
func (c *Catalog) RegisterProxy(name string, h gin.HandlerFunc) {
	c.proxies[name] = h
}

// Service looks up a code service
func (c *Catalog) Service(name string) (CodeService, bool) {
	svc, ok := c.services[name]
	return svc, ok && svc != nil
}

// Proxy looks up a proxy handler
func (c *Catalog) Proxy(name string) (gin.HandlerFunc, bool) {
	h, ok := c.proxies[name]
	return h, ok && h != nil
}

// Names returns the registered code service and proxy handler names
func (c *Catalog) Names() (services, proxies []string) {
	for name := range c.services {
		services = append(services, name)
	}
	for name := range c.proxies {
		proxies = append(proxies, name)
	}
	sort.Strings(services)
	sort.Strings(proxies)
	return services, proxies
}
