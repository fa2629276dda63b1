// Package openapi describes the loaded mock surface as an OpenAPI 3 document
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/service"
)

var colonParam = regexp.MustCompile(`:([^/]+)`)

// Info is the document metadata
type Info struct {
	Title   string
	Version string
}

// Build exports every config service as one operation with one response per
// variant. Code services only appear as tags since their routes are opaque.
func Build(reg *service.Registry, info Info) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: "Mock services loaded from " + reg.Root(),
		},
		Paths: openapi3.NewPaths(),
	}

	for _, e := range reg.Entries() {
		d := e.Descriptor
		tag := &openapi3.Tag{Name: d.Name, Description: d.Description}
		if d.Kind == models.KindCode {
			tag.Description = strings.TrimSpace(d.Description + " (code service mounted at " + d.MountPath + ")")
		}
		doc.Tags = append(doc.Tags, tag)

		if d.Kind != models.KindConfig {
			continue
		}

		p := OpenAPIPath(d.MountPath + d.Path)
		item := doc.Paths.Value(p)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(p, item)
		}
		item.SetOperation(d.Method, operation(e, p))
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI export: %w", err)
	}
	return doc, nil
}

// OpenAPIPath converts gin's :param segments to {param}
func OpenAPIPath(p string) string {
	return colonParam.ReplaceAllString(service.GinPath(p), "{$1}")
}

func operation(e *service.Entry, p string) *openapi3.Operation {
	d := e.Descriptor

	op := openapi3.NewOperation()
	op.OperationID = filepath.Base(e.Dir)
	op.Summary = d.Description
	op.Tags = []string{d.Name}

	for _, name := range pathParams(p) {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}

	if uk := d.UniqueKey; uk != nil {
		name := strings.SplitN(uk.Modifier, ".", 2)[0]
		desc := fmt.Sprintf("Unique key of type %q used to select a mapped response", uk.Type)
		switch uk.Target {
		case models.TargetQuery:
			op.AddParameter(openapi3.NewQueryParameter(name).WithDescription(desc).WithSchema(openapi3.NewStringSchema()))
		case models.TargetHeaders:
			op.AddParameter(openapi3.NewHeaderParameter(name).WithDescription(desc).WithSchema(openapi3.NewStringSchema()))
		}
		op.Extensions = map[string]interface{}{"x-unique-key": uk}
	}

	op.Responses = responses(e)
	return op
}

func pathParams(p string) []string {
	var names []string
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			names = append(names, seg[1:len(seg)-1])
		}
	}
	return names
}

// responses groups variants by the status their payload declares. The
// default variant's example wins when several share a status.
func responses(e *service.Entry) *openapi3.Responses {
	d := e.Descriptor
	byStatus := map[string][]string{}
	examples := map[string]interface{}{}
	var order []string

	for _, v := range d.Variants {
		key := "default"
		var example interface{}
		if v.ID != models.ProxyVariantID {
			if payload, err := readPayload(e.PayloadPath(v.ID)); err == nil {
				key = strconv.Itoa(int(payload.Status))
				if len(payload.Body) > 0 {
					_ = json.Unmarshal(payload.Body, &example)
				}
			}
		}

		if _, seen := byStatus[key]; !seen {
			order = append(order, key)
		}
		byStatus[key] = append(byStatus[key], v.Name)
		if _, ok := examples[key]; !ok || v.ID == d.DefaultVariantID {
			if example != nil {
				examples[key] = example
			}
		}
	}
	sort.Strings(order)

	opts := make([]openapi3.NewResponsesOption, 0, len(order))
	for _, key := range order {
		resp := openapi3.NewResponse().WithDescription(strings.Join(byStatus[key], ", "))
		if ex, ok := examples[key]; ok {
			resp.Content = openapi3.Content{
				"application/json": &openapi3.MediaType{Example: ex},
			}
		}
		opts = append(opts, openapi3.WithName(key, resp))
	}
	return openapi3.NewResponses(opts...)
}

func readPayload(path string) (*models.VariantPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload models.VariantPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.Status == 0 {
		payload.Status = 200
	}
	return &payload, nil
}

// YAML renders the document in block style
func YAML(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	resetStyle(&node)
	return yaml.Marshal(&node)
}

// resetStyle drops the flow and quoting styles inherited from JSON
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
