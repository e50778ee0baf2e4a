package types

import "time"

// ScheduleStatus is the state of a precomputation schedule for one date.
// Legal transitions: Scheduled -> Running -> {Completed | Failed | Cancelled}.
// The Scheduled -> Running transition is a compare-and-set; it is the only
// way a run may start, and at most one run per date can hold it.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleRunning   ScheduleStatus = "running"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleCompleted || s == ScheduleFailed || s == ScheduleCancelled
}

// PrecomputationSchedule is one row per target date, mutated only by the
// precompute engine.
type PrecomputationSchedule struct {
	TargetDate      time.Time      `json:"target_date"` // midnight UTC
	Status          ScheduleStatus `json:"status"`
	JobID           string         `json:"job_id,omitempty"`
	PatiosTotal     int            `json:"patios_total"`
	PatiosProcessed int            `json:"patios_processed"`
	RetryCount      int            `json:"retry_count"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ComputationVersion tags precomputed rows with the algorithm revision that
// produced them, so a calculator change can invalidate old rows wholesale.
const ComputationVersion = 3

// PrecomputedSunExposure is a durable, date/time-partitioned snapshot of a
// PatioSunExposure written by a precomputation run.
type PrecomputedSunExposure struct {
	PatioID            string           `json:"patio_id"`
	Date               time.Time        `json:"date"` // midnight UTC partition key
	Timestamp          time.Time        `json:"timestamp"`
	ExposurePct        float64          `json:"exposure_pct"`
	State              ExposureState    `json:"state"`
	ConfidencePct      float64          `json:"confidence_pct"`
	SunlitAreaM2       float64          `json:"sunlit_area_m2"`
	ShadedAreaM2       float64          `json:"shaded_area_m2"`
	Weather            *ProcessedWeather `json:"weather,omitempty"`
	ComputedAt         time.Time        `json:"computed_at"`
	ExpiresAt          time.Time        `json:"expires_at"`
	ComputationVersion int              `json:"computation_version"`
	IsStale            bool             `json:"is_stale"`
}

// PrecomputeMessage is the SQS payload that enqueues a precomputation run
// for a target date.
type PrecomputeMessage struct {
	JobID      string    `json:"job_id"`
	TargetDate time.Time `json:"target_date"`
	Reason     string    `json:"reason,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
