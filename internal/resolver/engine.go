package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/service"
	"github.com/prasenjit/go-modulus/internal/stats"
	"github.com/prasenjit/go-modulus/internal/storage"
	"github.com/prasenjit/go-modulus/internal/tracing"
	"github.com/prasenjit/go-modulus/internal/uniquekey"
)

// Engine answers requests for config-defined services
type Engine struct {
	store          storage.Storage
	statsCollector *stats.Collector
	tracingService *tracing.Service // nil disables tracing
	logger         *zap.Logger
}

// NewEngine creates a resolution engine
func NewEngine(store storage.Storage, statsCollector *stats.Collector, tracingService *tracing.Service, logger *zap.Logger) *Engine {
	return &Engine{
		store:          store,
		statsCollector: statsCollector,
		tracingService: tracingService,
		logger:         logger,
	}
}

// Resolve picks the variant for a request and loads what is needed to answer it.
// It reads the store and the payload file and nothing else.
func (e *Engine) Resolve(entry *service.Entry, req *uniquekey.RequestData) Outcome {
	desc := &entry.Descriptor
	out := Outcome{
		VariantID: desc.DefaultVariantID,
		Selection: models.SelectionDefault,
	}

	if desc.UniqueKey != nil {
		if key, ok := uniquekey.Extract(desc.UniqueKey, req); ok {
			out.KeyValue = key
			if m := e.latestMapping(desc, key); m != nil {
				out.VariantID = m.SelectedVariantID
				out.Selection = models.SelectionMapping
			}
		}
	}

	if out.VariantID == models.ProxyVariantID {
		if entry.Proxy == nil {
			out.Kind = OutcomeError
			out.Err = ErrProxyUnavailable
			return out
		}
		out.Kind = OutcomeProxy
		out.Proxy = entry.Proxy
		return out
	}

	payload, err := loadPayload(entry.PayloadPath(out.VariantID))
	if err != nil {
		out.Kind = OutcomeError
		out.Err = err
		return out
	}

	out.Kind = OutcomeStatic
	out.Payload = payload
	return out
}

// latestMapping returns the most recently written mapping for the key, if any
func (e *Engine) latestMapping(desc *models.ServiceDescriptor, key string) *models.Mapping {
	records, err := e.store.FindByField(models.ResponsesCollection, models.FieldKeyValue, key)
	if err != nil {
		e.logger.Error("mapping lookup failed", zap.String("service", desc.Name), zap.Error(err))
		return nil
	}

	var latest storage.Record
	for _, rec := range records {
		if rec[models.FieldServiceName] != desc.Name || rec[models.FieldKeyType] != desc.UniqueKey.Type {
			continue
		}
		if latest == nil || rec.Seq() > latest.Seq() {
			latest = rec
		}
	}
	if latest == nil {
		return nil
	}
	return models.MappingFromRecord(latest, latest.ID(), latest.Seq())
}

// loadPayload reads a variant file. It runs on every request so edits show up immediately.
func loadPayload(path string) (*models.VariantPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMissing, err)
	}

	var payload models.VariantPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPayloadInvalid, path, err)
	}
	if !payload.Status.Valid() {
		return nil, fmt.Errorf("%w: %s: status %d out of range", ErrPayloadInvalid, path, payload.Status)
	}
	if payload.Status == 0 {
		payload.Status = http.StatusOK
	}
	return &payload, nil
}

// Handler returns the gin handler serving entry
func (e *Engine) Handler(entry *service.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		e.Serve(entry, c)
	}
}

// Serve resolves the request and writes the response
func (e *Engine) Serve(entry *service.Entry, c *gin.Context) {
	startTime := time.Now()
	desc := &entry.Descriptor

	var requestBody string
	if c.Request.Body != nil {
		bodyBytes, _ := io.ReadAll(c.Request.Body)
		requestBody = string(bodyBytes)
		// Proxy handlers get the body back
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	pathParams := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		pathParams[p.Key] = p.Value
	}

	out := e.Resolve(entry, &uniquekey.RequestData{
		PathParams:  pathParams,
		QueryParams: c.Request.URL.Query(),
		Headers:     c.Request.Header,
		Body:        requestBody,
	})

	switch out.Kind {
	case OutcomeStatic:
		writePayload(c, out.Payload)
	case OutcomeProxy:
		out.Proxy(c)
	default:
		e.logger.Error("variant resolution failed",
			zap.String("service", desc.Name),
			zap.String("variant", out.VariantID),
			zap.Error(out.Err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   out.Err.Error(),
			"variant": out.VariantID,
			"service": desc.Name,
		})
	}

	duration := time.Since(startTime)
	status := c.Writer.Status()

	e.statsCollector.RecordRequest(desc.Name, out.VariantID, out.Mapped(), duration, status >= 400)
	if out.Kind == OutcomeError {
		e.statsCollector.RecordError(desc.Name, out.VariantID, c.Request.URL.Path, c.Request.Method, status, out.Err.Error())
	}

	e.logger.Debug("mock resolved",
		zap.String("service", desc.Name),
		zap.String("variant", out.VariantID),
		zap.String("selection", out.Selection),
		zap.Stringer("outcome", out.Kind),
		zap.Int("status", status),
	)

	if e.tracingService == nil {
		return
	}

	trace := &models.Trace{
		ServiceName: desc.Name,
		Route:       desc.Method + " " + desc.MountPath + desc.Path,
		Timestamp:   startTime,
		Duration:    duration.Nanoseconds(),
		VariantID:   out.VariantID,
		Selection:   out.Selection,
		KeyValue:    out.KeyValue,
		Request: models.TraceRequest{
			Method:  c.Request.Method,
			URL:     c.Request.URL.String(),
			Path:    c.Request.URL.Path,
			Query:   c.Request.URL.Query(),
			Headers: c.Request.Header,
			Body:    requestBody,
		},
		Response: models.TraceResponse{
			StatusCode: status,
			Headers:    c.Writer.Header().Clone(),
		},
	}
	if out.Err != nil {
		trace.Error = out.Err.Error()
	}
	e.tracingService.RecordTrace(trace)
}

func writePayload(c *gin.Context, payload *models.VariantPayload) {
	for key, value := range payload.Headers {
		c.Header(key, value)
	}

	status := int(payload.Status)
	if len(payload.Body) == 0 {
		c.Status(status)
		return
	}

	contentType := c.Writer.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Data(status, contentType, payload.Body)
}
