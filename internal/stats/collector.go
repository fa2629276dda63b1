package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/prasenjit/go-modulus/internal/models"
)

// Collector collects and aggregates per-service resolution statistics
type Collector struct {
	mu             sync.RWMutex
	startTime      time.Time
	services       map[string]*models.AtomicServiceStat // service name -> stats
	recentErrors   []models.ErrorStat
	hourlyStats    map[string]*hourlyCounter // "YYYY-MM-DD-HH" -> counter
	maxErrors      int
	maxHourlySlots int
}

type hourlyCounter struct {
	Hour     string
	Requests int64
	Errors   int64
}

// NewCollector creates a new statistics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:      time.Now(),
		services:       make(map[string]*models.AtomicServiceStat),
		recentErrors:   make([]models.ErrorStat, 0),
		hourlyStats:    make(map[string]*hourlyCounter),
		maxErrors:      100,
		maxHourlySlots: 168, // 7 days
	}
}

// RecordRequest records one resolved request. mapped is true when the
// variant came from a stored mapping rather than the service default.
func (c *Collector) RecordRequest(serviceName, variantID string, mapped bool, duration time.Duration, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	svc, ok := c.services[serviceName]
	if !ok {
		svc = &models.AtomicServiceStat{ServiceName: serviceName}
		svc.MinTimeNs.Store(duration.Nanoseconds())
		c.services[serviceName] = svc
	}

	svc.TotalRequests.Add(1)
	svc.TotalTimeNs.Add(duration.Nanoseconds())
	svc.LastRequestTime.Store(time.Now())
	if mapped {
		svc.MappedRequests.Add(1)
	}
	if variantID != "" {
		svc.CountVariant(variantID)
	}

	durationNs := duration.Nanoseconds()
	for {
		currentMin := svc.MinTimeNs.Load()
		if durationNs >= currentMin || svc.MinTimeNs.CompareAndSwap(currentMin, durationNs) {
			break
		}
	}
	for {
		currentMax := svc.MaxTimeNs.Load()
		if durationNs <= currentMax || svc.MaxTimeNs.CompareAndSwap(currentMax, durationNs) {
			break
		}
	}

	if isError {
		svc.TotalErrors.Add(1)
	}

	hourKey := time.Now().Format("2006-01-02-15")
	hourly, ok := c.hourlyStats[hourKey]
	if !ok {
		hourly = &hourlyCounter{Hour: hourKey}
		c.hourlyStats[hourKey] = hourly
		c.cleanupOldHourlyStats()
	}
	hourly.Requests++
	if isError {
		hourly.Errors++
	}
}

// RecordError records a failed resolution
func (c *Collector) RecordError(serviceName, variantID, path, method string, statusCode int, err string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentErrors = append(c.recentErrors, models.ErrorStat{
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		VariantID:   variantID,
		Path:        path,
		Method:      method,
		StatusCode:  statusCode,
		Error:       err,
	})
	if len(c.recentErrors) > c.maxErrors {
		c.recentErrors = c.recentErrors[1:]
	}
}

// cleanupOldHourlyStats removes hourly stats older than maxHourlySlots
func (c *Collector) cleanupOldHourlyStats() {
	if len(c.hourlyStats) <= c.maxHourlySlots {
		return
	}

	keys := make([]string, 0, len(c.hourlyStats))
	for k := range c.hourlyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	toRemove := len(keys) - c.maxHourlySlots
	for i := 0; i < toRemove; i++ {
		delete(c.hourlyStats, keys[i])
	}
}

// GetGlobalStats returns global statistics
func (c *Collector) GetGlobalStats(activeServices int) *models.GlobalStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalRequests, totalErrors, totalTimeNs int64

	svcStats := make([]models.ServiceStat, 0, len(c.services))
	for _, svc := range c.services {
		stat := svc.ToServiceStat()
		svcStats = append(svcStats, stat)
		totalRequests += stat.TotalRequests
		totalErrors += stat.TotalErrors
		totalTimeNs += svc.TotalTimeNs.Load()
	}

	// Busiest first, name breaks ties
	sort.Slice(svcStats, func(i, j int) bool {
		if svcStats[i].TotalRequests != svcStats[j].TotalRequests {
			return svcStats[i].TotalRequests > svcStats[j].TotalRequests
		}
		return svcStats[i].ServiceName < svcStats[j].ServiceName
	})

	topServices := svcStats
	if len(topServices) > 10 {
		topServices = topServices[:10]
	}

	var avgResponseTimeMs float64
	if totalRequests > 0 {
		avgResponseTimeMs = float64(totalTimeNs) / float64(totalRequests) / 1e6
	}

	uptime := time.Since(c.startTime).Seconds()
	var requestsPerSecond float64
	if uptime > 0 {
		requestsPerSecond = float64(totalRequests) / uptime
	}

	recentErrors := make([]models.ErrorStat, len(c.recentErrors))
	copy(recentErrors, c.recentErrors)

	return &models.GlobalStats{
		TotalRequests:     totalRequests,
		TotalErrors:       totalErrors,
		ActiveServices:    activeServices,
		AvgResponseTimeMs: avgResponseTimeMs,
		RequestsPerSecond: requestsPerSecond,
		StartTime:         c.startTime,
		Uptime:            formatDuration(time.Since(c.startTime)),
		TopServices:       topServices,
		RecentErrors:      recentErrors,
		RequestsByHour:    c.buildHourlyStats(),
	}
}

// GetServiceStats returns statistics for one service, nil if it has seen no traffic
func (c *Collector) GetServiceStats(serviceName string) *models.ServiceStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if svc, ok := c.services[serviceName]; ok {
		stat := svc.ToServiceStat()
		return &stat
	}

	return nil
}

// buildHourlyStats builds the last 24 hours of request counts
func (c *Collector) buildHourlyStats() []models.HourlyStat {
	now := time.Now()
	stats := make([]models.HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		hourKey := hour.Format("2006-01-02-15")

		stat := models.HourlyStat{
			Hour: hour.Format("15:00"),
		}

		if hourly, ok := c.hourlyStats[hourKey]; ok {
			stat.Requests = hourly.Requests
			stat.Errors = hourly.Errors
		}

		stats = append(stats, stat)
	}

	return stats
}

// Reset resets all statistics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.services = make(map[string]*models.AtomicServiceStat)
	c.recentErrors = make([]models.ErrorStat, 0)
	c.hourlyStats = make(map[string]*hourlyCounter)
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
