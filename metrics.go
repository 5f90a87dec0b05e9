package sdtmvalidator

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks validation performance metrics using lock-free atomic
// operations. All methods are safe for concurrent use.
type Metrics struct {
	// Validation counts
	tablesTotal  atomic.Uint64
	tablesPassed atomic.Uint64
	studiesTotal atomic.Uint64

	// Timing (stored as nanoseconds)
	tableTimeTotal atomic.Uint64
	tableTimeMin   atomic.Uint64
	tableTimeMax   atomic.Uint64

	// Cache metrics
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Pool metrics
	poolAcquires atomic.Uint64
	poolReleases atomic.Uint64

	// Finding counts by severity
	criticalsTotal atomic.Uint64
	errorsTotal    atomic.Uint64
	warningsTotal  atomic.Uint64
	infosTotal     atomic.Uint64

	// Per-check timing
	checkTiming sync.Map // map[string]*checkMetrics
}

// checkMetrics tracks metrics for a single validation check.
type checkMetrics struct {
	invocations   atomic.Uint64
	totalTime     atomic.Uint64 // nanoseconds
	findingsFound atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.tableTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordTable records a completed table validation.
func (m *Metrics) RecordTable(duration time.Duration, status Status) {
	m.tablesTotal.Add(1)
	if status == StatusPass {
		m.tablesPassed.Add(1)
	}

	ns := uint64(duration.Nanoseconds())
	m.tableTimeTotal.Add(ns)

	// Update min (CAS loop)
	for {
		old := m.tableTimeMin.Load()
		if ns >= old {
			break
		}
		if m.tableTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (CAS loop)
	for {
		old := m.tableTimeMax.Load()
		if ns <= old {
			break
		}
		if m.tableTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordStudy records a completed study validation.
func (m *Metrics) RecordStudy() {
	m.studiesTotal.Add(1)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordPoolAcquire records a pool acquire operation.
func (m *Metrics) RecordPoolAcquire() {
	m.poolAcquires.Add(1)
}

// RecordPoolRelease records a pool release operation.
func (m *Metrics) RecordPoolRelease() {
	m.poolReleases.Add(1)
}

// RecordFinding records a finding by severity.
func (m *Metrics) RecordFinding(severity Severity) {
	switch severity {
	case SeverityCritical:
		m.criticalsTotal.Add(1)
	case SeverityError:
		m.errorsTotal.Add(1)
	case SeverityWarning:
		m.warningsTotal.Add(1)
	case SeverityInfo:
		m.infosTotal.Add(1)
	}
}

// RecordCheck records metrics for one validation check execution.
func (m *Metrics) RecordCheck(checkName string, duration time.Duration, findingsFound int) {
	cm := m.getOrCreateCheckMetrics(checkName)
	cm.invocations.Add(1)
	cm.totalTime.Add(uint64(duration.Nanoseconds()))
	cm.findingsFound.Add(uint64(findingsFound))
}

func (m *Metrics) getOrCreateCheckMetrics(name string) *checkMetrics {
	if v, ok := m.checkTiming.Load(name); ok {
		return v.(*checkMetrics)
	}
	cm := &checkMetrics{}
	actual, _ := m.checkTiming.LoadOrStore(name, cm)
	return actual.(*checkMetrics)
}

// --- Query Methods ---

// TablesTotal returns the total number of table validations performed.
func (m *Metrics) TablesTotal() uint64 {
	return m.tablesTotal.Load()
}

// TablesPassed returns the number of tables that passed validation.
func (m *Metrics) TablesPassed() uint64 {
	return m.tablesPassed.Load()
}

// StudiesTotal returns the total number of study validations performed.
func (m *Metrics) StudiesTotal() uint64 {
	return m.studiesTotal.Load()
}

// PassRate returns the fraction of tables that passed (0.0 to 1.0).
func (m *Metrics) PassRate() float64 {
	total := m.tablesTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.tablesPassed.Load()) / float64(total)
}

// AverageTableTime returns the average per-table validation duration.
func (m *Metrics) AverageTableTime() time.Duration {
	total := m.tablesTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.tableTimeTotal.Load() / total)
}

// MinTableTime returns the minimum per-table validation duration.
func (m *Metrics) MinTableTime() time.Duration {
	minVal := m.tableTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal)
}

// MaxTableTime returns the maximum per-table validation duration.
func (m *Metrics) MaxTableTime() time.Duration {
	return time.Duration(m.tableTimeMax.Load())
}

// CacheHits returns the total cache hits.
func (m *Metrics) CacheHits() uint64 {
	return m.cacheHits.Load()
}

// CacheMisses returns the total cache misses.
func (m *Metrics) CacheMisses() uint64 {
	return m.cacheMisses.Load()
}

// CacheHitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// PoolAcquires returns the total pool acquire operations.
func (m *Metrics) PoolAcquires() uint64 {
	return m.poolAcquires.Load()
}

// PoolReleases returns the total pool release operations.
func (m *Metrics) PoolReleases() uint64 {
	return m.poolReleases.Load()
}

// PoolLeaks returns potential pool leaks (acquires - releases).
func (m *Metrics) PoolLeaks() int64 {
	return int64(m.poolAcquires.Load()) - int64(m.poolReleases.Load())
}

// CriticalsTotal returns the total critical findings recorded.
func (m *Metrics) CriticalsTotal() uint64 {
	return m.criticalsTotal.Load()
}

// ErrorsTotal returns the total error findings recorded.
func (m *Metrics) ErrorsTotal() uint64 {
	return m.errorsTotal.Load()
}

// WarningsTotal returns the total warning findings recorded.
func (m *Metrics) WarningsTotal() uint64 {
	return m.warningsTotal.Load()
}

// InfosTotal returns the total informational findings recorded.
func (m *Metrics) InfosTotal() uint64 {
	return m.infosTotal.Load()
}

// CheckStats holds statistics for a single validation check.
type CheckStats struct {
	Name          string
	Invocations   uint64
	TotalTime     time.Duration
	AvgTime       time.Duration
	FindingsFound uint64
}

// CheckStats returns statistics for a specific check.
func (m *Metrics) CheckStats(checkName string) (CheckStats, bool) {
	v, ok := m.checkTiming.Load(checkName)
	if !ok {
		return CheckStats{Name: checkName}, false
	}
	cm := v.(*checkMetrics)
	invocations := cm.invocations.Load()
	totalTime := cm.totalTime.Load()

	var avgTime time.Duration
	if invocations > 0 {
		avgTime = time.Duration(totalTime / invocations)
	}

	return CheckStats{
		Name:          checkName,
		Invocations:   invocations,
		TotalTime:     time.Duration(totalTime),
		AvgTime:       avgTime,
		FindingsFound: cm.findingsFound.Load(),
	}, true
}

// AllCheckStats returns statistics for all checks.
func (m *Metrics) AllCheckStats() []CheckStats {
	var out []CheckStats
	m.checkTiming.Range(func(key, value any) bool {
		cm := value.(*checkMetrics)
		name := key.(string)
		invocations := cm.invocations.Load()
		totalTime := cm.totalTime.Load()

		var avgTime time.Duration
		if invocations > 0 {
			avgTime = time.Duration(totalTime / invocations)
		}

		out = append(out, CheckStats{
			Name:          name,
			Invocations:   invocations,
			TotalTime:     time.Duration(totalTime),
			AvgTime:       avgTime,
			FindingsFound: cm.findingsFound.Load(),
		})
		return true
	})
	return out
}

// --- Export Methods ---

// MetricsSnapshot represents a point-in-time snapshot of all metrics.
type MetricsSnapshot struct {
	// Timestamp when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`

	// Validation metrics
	TablesTotal  uint64  `json:"tables_total"`
	TablesPassed uint64  `json:"tables_passed"`
	StudiesTotal uint64  `json:"studies_total"`
	PassRate     float64 `json:"pass_rate"`

	// Timing metrics (in nanoseconds for precision)
	AvgTableTimeNs uint64 `json:"avg_table_time_ns"`
	MinTableTimeNs uint64 `json:"min_table_time_ns"`
	MaxTableTimeNs uint64 `json:"max_table_time_ns"`

	// Cache metrics
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	// Pool metrics
	PoolAcquires uint64 `json:"pool_acquires"`
	PoolReleases uint64 `json:"pool_releases"`
	PoolLeaks    int64  `json:"pool_leaks"`

	// Finding metrics
	CriticalsTotal uint64 `json:"criticals_total"`
	ErrorsTotal    uint64 `json:"errors_total"`
	WarningsTotal  uint64 `json:"warnings_total"`
	InfosTotal     uint64 `json:"infos_total"`

	// Check metrics
	Checks []CheckStats `json:"checks,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	total := m.tablesTotal.Load()
	cacheHits := m.cacheHits.Load()
	cacheMisses := m.cacheMisses.Load()

	var avgTime, passRate, cacheHitRate float64
	if total > 0 {
		avgTime = float64(m.tableTimeTotal.Load()) / float64(total)
		passRate = float64(m.tablesPassed.Load()) / float64(total)
	}
	if cacheTotal := cacheHits + cacheMisses; cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	minTime := m.tableTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}

	return MetricsSnapshot{
		Timestamp:      time.Now(),
		TablesTotal:    total,
		TablesPassed:   m.tablesPassed.Load(),
		StudiesTotal:   m.studiesTotal.Load(),
		PassRate:       passRate,
		AvgTableTimeNs: uint64(avgTime),
		MinTableTimeNs: minTime,
		MaxTableTimeNs: m.tableTimeMax.Load(),
		CacheHits:      cacheHits,
		CacheMisses:    cacheMisses,
		CacheHitRate:   cacheHitRate,
		PoolAcquires:   m.poolAcquires.Load(),
		PoolReleases:   m.poolReleases.Load(),
		PoolLeaks:      m.PoolLeaks(),
		CriticalsTotal: m.criticalsTotal.Load(),
		ErrorsTotal:    m.errorsTotal.Load(),
		WarningsTotal:  m.warningsTotal.Load(),
		InfosTotal:     m.infosTotal.Load(),
		Checks:         m.AllCheckStats(),
	}
}

// Export returns metrics as a map suitable for external systems.
func (m *Metrics) Export() map[string]interface{} {
	s := m.Snapshot()
	return map[string]interface{}{
		"tables_total":      s.TablesTotal,
		"tables_passed":     s.TablesPassed,
		"studies_total":     s.StudiesTotal,
		"pass_rate":         s.PassRate,
		"avg_table_time_ns": s.AvgTableTimeNs,
		"min_table_time_ns": s.MinTableTimeNs,
		"max_table_time_ns": s.MaxTableTimeNs,
		"cache_hits":        s.CacheHits,
		"cache_misses":      s.CacheMisses,
		"cache_hit_rate":    s.CacheHitRate,
		"pool_acquires":     s.PoolAcquires,
		"pool_releases":     s.PoolReleases,
		"pool_leaks":        s.PoolLeaks,
		"criticals_total":   s.CriticalsTotal,
		"errors_total":      s.ErrorsTotal,
		"warnings_total":    s.WarningsTotal,
		"infos_total":       s.InfosTotal,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.tablesTotal.Store(0)
	m.tablesPassed.Store(0)
	m.studiesTotal.Store(0)
	m.tableTimeTotal.Store(0)
	m.tableTimeMin.Store(^uint64(0))
	m.tableTimeMax.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.poolAcquires.Store(0)
	m.poolReleases.Store(0)
	m.criticalsTotal.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.infosTotal.Store(0)

	m.checkTiming.Range(func(key, _ any) bool {
		m.checkTiming.Delete(key)
		return true
	})
}
