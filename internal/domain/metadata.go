package domain

import "time"

// IndexStatus is the lifecycle state of one logical index.
type IndexStatus string

const (
	IndexActive   IndexStatus = "active"
	IndexBuilding IndexStatus = "building"
	IndexError    IndexStatus = "error"
	IndexDisabled IndexStatus = "disabled"
)

// Logical index names.
const (
	IndexUnits    = "units"
	IndexSchedule = "schedule"
)

// IndexMetadata tracks the state of one logical index. The version counter
// increases monotonically on every update so stale readers can be detected.
type IndexMetadata struct {
	Name            string      `json:"name"`
	LastUpdated     time.Time   `json:"last_updated"`
	RecordCount     int64       `json:"record_count"`
	Status          IndexStatus `json:"status"`
	Version         int64       `json:"version"`
	LastError       string      `json:"last_error,omitempty"`
	RebuildAttempts int         `json:"rebuild_attempts"`
}

// Touch advances the version and stamps the update time.
func (m *IndexMetadata) Touch() {
	m.Version++
	m.LastUpdated = time.Now().UTC()
}
