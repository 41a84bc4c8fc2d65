package model

import "time"

// DefaultDebounceWindowMs is applied until the user picks another window.
const DefaultDebounceWindowMs = 500

// AllowedDebounceWindowsMs is the fixed set of selectable debounce windows.
var AllowedDebounceWindowsMs = []int64{100, 300, 500, 1000, 2000}

// ValidDebounceWindow reports whether the value belongs to the allowed set.
func ValidDebounceWindow(ms int64) bool {
	for _, v := range AllowedDebounceWindowsMs {
		if v == ms {
			return true
		}
	}
	return false
}

// Settings is the persisted configuration surface shared with the settings
// collaborator.
type Settings struct {
	DebounceWindowMs  int64      `json:"debounce_window_ms"`
	MonitoringEnabled bool       `json:"monitoring_enabled"`
	LastState         string     `json:"last_state,omitempty"`
	LastExportAt      *time.Time `json:"last_export_at,omitempty"`
	LastExportHash    string     `json:"last_export_hash,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DefaultSettings returns the settings used before anything was persisted.
func DefaultSettings() Settings {
	return Settings{
		DebounceWindowMs:  DefaultDebounceWindowMs,
		MonitoringEnabled: true,
	}
}

// ExportScope selects which intervals an export covers.
type ExportScope string

const (
	ExportToday    ExportScope = "today"
	ExportLastDays ExportScope = "last"
	ExportAll      ExportScope = "all"
)
