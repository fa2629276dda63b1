package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ServiceKind tells how a service was discovered
type ServiceKind string

const (
	KindCode   ServiceKind = "code"
	KindConfig ServiceKind = "config"
)

// ProxyVariantID is the variant id that hands the request to a proxy handler
const ProxyVariantID = "proxy"

// ServiceDescriptor is the normalized metadata for one discovered mock service
type ServiceDescriptor struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	DefaultVariantID string         `json:"defaultResponse"`
	UniqueKey        *UniqueKeySpec `json:"uniqueKey,omitempty"`
	Variants         []VariantMeta  `json:"responses"`
	Kind             ServiceKind    `json:"kind"`
	Method           string         `json:"method,omitempty"` // config services only
	Path             string         `json:"path,omitempty"`   // config services only
	MountPath        string         `json:"mountPath"`
}

// HasVariant reports whether id is one of the service's variants
func (d *ServiceDescriptor) HasVariant(id string) bool {
	for _, v := range d.Variants {
		if v.ID == id {
			return true
		}
	}
	return false
}

// UniqueKeySpec says where a request carries the value used to look up a mapping
type UniqueKeySpec struct {
	Target   string `json:"target"`   // query, path, headers, body
	Modifier string `json:"modifier"` // dotted field path, e.g. user.id
	Type     string `json:"type"`     // label stored on mappings
}

// Supported unique key targets
const (
	TargetQuery   = "query"
	TargetPath    = "path"
	TargetHeaders = "headers"
	TargetBody    = "body"
)

// ValidTargets returns all valid unique key targets
func ValidTargets() []string {
	return []string{TargetQuery, TargetPath, TargetHeaders, TargetBody}
}

// VariantMeta identifies one response variant of a service
type VariantMeta struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// VariantPayload is the on-disk shape of a config service variant
type VariantPayload struct {
	Name    string            `json:"name,omitempty"`
	Status  StatusCode        `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body"`
}

// StatusCode accepts both 200 and "200"
type StatusCode int

// Valid reports whether s can be written as an HTTP status. Zero means unset.
func (s StatusCode) Valid() bool {
	return s == 0 || (s >= 100 && s <= 999)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *StatusCode) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = StatusCode(n)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("status must be a number or numeric string: %s", string(data))
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return fmt.Errorf("status must be a number or numeric string: %q", str)
	}
	*s = StatusCode(n)
	return nil
}

// ServiceConfig is the index.json descriptor of a config-defined service
type ServiceConfig struct {
	Name            string         `json:"name"`
	Desc            string         `json:"desc"`
	DefaultResponse string         `json:"defaultResponse"`
	Method          string         `json:"method"`
	Path            string         `json:"path"`
	UniqueKey       *UniqueKeySpec `json:"uniqueKey,omitempty"`
}

// CodeEntryPoint is the index.yaml of a code-defined service
type CodeEntryPoint struct {
	Handler         string        `yaml:"handler"`
	Name            string        `yaml:"name"`
	Desc            string        `yaml:"desc"`
	DefaultResponse string        `yaml:"defaultResponse"`
	Responses       []VariantMeta `yaml:"responses"`
}

// ProxyConfig is the proxy.yaml that enables the proxy variant
type ProxyConfig struct {
	Handler string `yaml:"handler"` // registered proxy handler name
	Target  string `yaml:"target"`  // upstream base URL
}

// ServiceSummary is a lightweight version for listings
type ServiceSummary struct {
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Kind             ServiceKind `json:"kind"`
	DefaultVariantID string      `json:"defaultResponse"`
	MountPath        string      `json:"mountPath"`
	VariantCount     int         `json:"responseCount"`
	Stateful         bool        `json:"stateful"`
}
