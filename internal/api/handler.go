package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prasenjit/go-modulus/internal/generator"
	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/openapi"
	"github.com/prasenjit/go-modulus/internal/service"
	"github.com/prasenjit/go-modulus/internal/stats"
	"github.com/prasenjit/go-modulus/internal/storage"
	"github.com/prasenjit/go-modulus/internal/tracing"
)

var errTracingDisabled = errors.New("tracing is disabled")

// Handler handles admin API requests
type Handler struct {
	store          storage.Storage
	registry       *service.Registry
	generators     []*generator.Generator
	statsCollector *stats.Collector
	tracingService *tracing.Service
	docInfo        openapi.Info
	logger         *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		store:          deps.Store,
		registry:       deps.Registry,
		generators:     deps.Generators,
		statsCollector: deps.Stats,
		tracingService: deps.Tracing,
		docInfo:        deps.DocInfo,
		logger:         deps.Logger,
	}
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"services":  h.registry.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ListServices returns all loaded services
func (h *Handler) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Summaries())
}

// GetService returns one service descriptor
func (h *Handler) GetService(c *gin.Context) {
	e, ok := h.registry.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}
	c.JSON(http.StatusOK, e.Descriptor)
}

// ListLoadErrors returns the directories that did not load
func (h *Handler) ListLoadErrors(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Errors())
}

// ListMappings returns stored mappings, oldest first.
// Optional filters: serviceName, keyValue.
func (h *Handler) ListMappings(c *gin.Context) {
	var (
		records []storage.Record
		err     error
	)
	if keyValue := c.Query("keyValue"); keyValue != "" {
		records, err = h.store.FindByField(models.ResponsesCollection, models.FieldKeyValue, keyValue)
	} else {
		records, err = h.store.All(models.ResponsesCollection)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	serviceName := c.Query("serviceName")
	mappings := make([]*models.Mapping, 0, len(records))
	for _, rec := range records {
		m := models.MappingFromRecord(rec, rec.ID(), rec.Seq())
		if serviceName != "" && m.ServiceName != serviceName {
			continue
		}
		mappings = append(mappings, m)
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Seq < mappings[j].Seq })

	c.JSON(http.StatusOK, mappings)
}

// CreateMapping stores which variant a request identity should receive.
// The newest mapping for an identity wins.
func (h *Handler) CreateMapping(c *gin.Context) {
	var input models.Mapping
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, ok := h.registry.Get(input.ServiceName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}
	desc := e.Descriptor
	if desc.UniqueKey == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Service does not declare a unique key"})
		return
	}
	if input.KeyType != desc.UniqueKey.Type {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Key type must be " + strconv.Quote(desc.UniqueKey.Type)})
		return
	}
	if !desc.HasVariant(input.SelectedVariantID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown variant " + strconv.Quote(input.SelectedVariantID)})
		return
	}

	input.ServiceName = desc.Name
	rec, err := h.store.Insert(models.ResponsesCollection, input.Record())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("mapping stored",
		zap.String("service", input.ServiceName),
		zap.String("keyType", input.KeyType),
		zap.String("keyValue", input.KeyValue),
		zap.String("variant", input.SelectedVariantID),
	)
	c.JSON(http.StatusCreated, models.MappingFromRecord(rec, rec.ID(), rec.Seq()))
}

// ClearMappings drops every stored mapping
func (h *Handler) ClearMappings(c *gin.Context) {
	if err := h.store.Clear(models.ResponsesCollection); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mappings cleared"})
}

// ListGenerators returns the configured field generators
func (h *Handler) ListGenerators(c *gin.Context) {
	c.JSON(http.StatusOK, generator.Summaries(h.generators))
}

type nextValuesRequest struct {
	Current map[string]string `json:"current"`
}

// NextGeneratorValues advances every generator from the caller's current values
func (h *Handler) NextGeneratorValues(c *gin.Context) {
	var input nextValuesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	values, err := generator.GenerateAll(h.generators, input.Current)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"values": values})
}

// GetGlobalStats returns global statistics
func (h *Handler) GetGlobalStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.statsCollector.GetGlobalStats(h.registry.Len()))
}

// GetServiceStats returns statistics for one service
func (h *Handler) GetServiceStats(c *gin.Context) {
	e, ok := h.registry.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}

	stat := h.statsCollector.GetServiceStats(e.Descriptor.Name)
	if stat == nil {
		stat = &models.ServiceStat{ServiceName: e.Descriptor.Name, Variants: map[string]int64{}}
	}
	c.JSON(http.StatusOK, stat)
}

// ResetStats resets all statistics
func (h *Handler) ResetStats(c *gin.Context) {
	h.statsCollector.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}

// ListTraces returns traces, newest first
func (h *Handler) ListTraces(c *gin.Context) {
	filter := &models.TraceFilter{
		ServiceName: c.Query("serviceName"),
		VariantID:   c.Query("variantId"),
		Method:      c.Query("method"),
		Limit:       100,
	}
	if s := c.Query("statusCode"); s != "" {
		code, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "statusCode must be a number"})
			return
		}
		filter.StatusCode = code
	}
	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative number"})
			return
		}
		filter.Limit = limit
	}

	c.JSON(http.StatusOK, h.tracingService.GetTraces(filter))
}

// GetTrace returns a single trace
func (h *Handler) GetTrace(c *gin.Context) {
	trace := h.tracingService.GetTrace(c.Param("id"))
	if trace == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trace not found"})
		return
	}
	c.JSON(http.StatusOK, trace)
}

// ClearTraces clears all traces, or one service's with ?serviceName=
func (h *Handler) ClearTraces(c *gin.Context) {
	if serviceName := c.Query("serviceName"); serviceName != "" {
		h.tracingService.ClearTracesByService(serviceName)
	} else {
		h.tracingService.ClearTraces()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Traces cleared"})
}

// requireTracing rejects trace requests when tracing is off
func (h *Handler) requireTracing(c *gin.Context) {
	if h.tracingService == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": errTracingDisabled.Error()})
		return
	}
	c.Next()
}

// GetOpenAPIJSON exports the mock surface as OpenAPI JSON
func (h *Handler) GetOpenAPIJSON(c *gin.Context) {
	doc, err := openapi.Build(h.registry, h.docInfo)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetOpenAPIYAML exports the mock surface as OpenAPI YAML
func (h *Handler) GetOpenAPIYAML(c *gin.Context) {
	doc, err := openapi.Build(h.registry, h.docInfo)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	data, err := openapi.YAML(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/yaml", data)
}
