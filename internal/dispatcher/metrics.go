package dispatcher

import (
	"sync"
	"time"

	"github.com/conneroisu/chtl/internal/errors"
)

// Metrics accumulates run statistics across files.
type Metrics struct {
	mutex sync.RWMutex
	snap  MetricsSnapshot
}

// MetricsSnapshot is a copy of the counters at one point in time.
type MetricsSnapshot struct {
	FilesProcessed  int                      `json:"files_processed" yaml:"files_processed"`
	FilesFailed     int                      `json:"files_failed" yaml:"files_failed"`
	TotalErrors     int                      `json:"total_errors" yaml:"total_errors"`
	TotalWarnings   int                      `json:"total_warnings" yaml:"total_warnings"`
	CacheHits       int                      `json:"cache_hits" yaml:"cache_hits"`
	TotalDuration   time.Duration            `json:"total_duration" yaml:"total_duration"`
	AverageDuration time.Duration            `json:"average_duration" yaml:"average_duration"`
	StageDurations  map[string]time.Duration `json:"stage_durations" yaml:"stage_durations"`
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{snap: MetricsSnapshot{StageDurations: make(map[string]time.Duration)}}
}

// Record adds one run to the counters.
func (m *Metrics) Record(st *State, duration time.Duration, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.snap.FilesProcessed++
	m.snap.TotalDuration += duration
	m.snap.AverageDuration = m.snap.TotalDuration / time.Duration(m.snap.FilesProcessed)
	m.snap.CacheHits += st.CacheHits
	for _, amb := range st.Ambiguous {
		if errors.IsRecoverable(amb) {
			m.snap.TotalWarnings++
		}
	}
	for stage, d := range st.Durations {
		m.snap.StageDurations[stage] += d
	}
	if err != nil {
		m.snap.FilesFailed++
		m.snap.TotalErrors++
	}
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := m.snap
	snap.StageDurations = make(map[string]time.Duration, len(m.snap.StageDurations))
	for k, v := range m.snap.StageDurations {
		snap.StageDurations[k] = v
	}
	return snap
}

// Reset clears every counter.
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.snap = MetricsSnapshot{StageDurations: make(map[string]time.Duration)}
}
