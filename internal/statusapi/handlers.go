package statusapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jroosing/goresolv/internal/resolver"
	"github.com/jroosing/goresolv/internal/statusapi/models"
)

// Handler serves the status API's read-only introspection endpoints
// over a single running Resolver.
type Handler struct {
	res       *resolver.Resolver
	startTime time.Time
}

func newHandler(res *resolver.Resolver) *Handler {
	return &Handler{res: res, startTime: time.Now()}
}

// Health godoc
// @Summary Health check
// @Description Returns whether the status API is reachable
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Cache godoc
// @Summary Cache statistics
// @Description Returns the resolver's cache entry counts and hit/miss tallies
// @Tags status
// @Produce json
// @Success 200 {object} models.CacheStatsResponse
// @Router /status/cache [get]
func (h *Handler) Cache(c *gin.Context) {
	s := h.res.CacheStats()
	c.JSON(http.StatusOK, models.CacheStatsResponse{
		Entries:      s.Entries,
		NegEntries:   s.NegEntries,
		Hits:         s.Hits,
		Misses:       s.Misses,
		NegativeHits: s.NegativeHits,
	})
}

// Queries godoc
// @Summary Active query count
// @Description Returns the number of resolutions currently in flight
// @Tags status
// @Produce json
// @Success 200 {object} models.QueriesStatsResponse
// @Router /status/queries [get]
func (h *Handler) Queries(c *gin.Context) {
	c.JSON(http.StatusOK, models.QueriesStatsResponse{Active: h.res.ActiveQueryCount()})
}

// Upstreams godoc
// @Summary Upstream health
// @Description Returns per-upstream success and failure tallies
// @Tags status
// @Produce json
// @Success 200 {object} models.UpstreamsResponse
// @Router /status/upstreams [get]
func (h *Handler) Upstreams(c *gin.Context) {
	health := h.res.UpstreamHealth()
	out := make(map[string]models.UpstreamStatResponse, len(health))
	for addr, s := range health {
		out[addr] = models.UpstreamStatResponse{Successes: s.Successes, Failures: s.Failures}
	}
	c.JSON(http.StatusOK, models.UpstreamsResponse{Upstreams: out})
}

// Stats godoc
// @Summary Server statistics
// @Description Returns runtime statistics including host CPU/memory usage and resolver counters
// @Tags status
// @Produce json
// @Success 200 {object} models.StatsResponse
// @Security ApiKeyAuth
// @Router /status/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	uptime := time.Since(h.startTime)

	memStats := models.MemoryStats{}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		memStats.TotalMB = float64(vmStat.Total) / 1024 / 1024
		memStats.FreeMB = float64(vmStat.Available) / 1024 / 1024
		memStats.UsedMB = float64(vmStat.Used) / 1024 / 1024
		memStats.UsedPercent = vmStat.UsedPercent
	}

	cpuStats := models.CPUStats{NumCPU: runtime.NumCPU()}
	if cpuPercent, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		cpuStats.UsedPercent = cpuPercent[0]
		cpuStats.IdlePercent = 100.0 - cpuPercent[0]
	}

	s := h.res.CacheStats()

	c.JSON(http.StatusOK, models.StatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		CPU:           cpuStats,
		Memory:        memStats,
		Cache: models.CacheStatsResponse{
			Entries:      s.Entries,
			NegEntries:   s.NegEntries,
			Hits:         s.Hits,
			Misses:       s.Misses,
			NegativeHits: s.NegativeHits,
		},
		Queries: models.QueriesStatsResponse{Active: h.res.ActiveQueryCount()},
	})
}
