package domain

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyCustom    Frequency = "custom"
)

// RetentionPolicy bounds how many artifacts persist per schedule.
// A job is retained if it is within the keepCount most recent terminal jobs
// OR younger than keepDays (union of both bounds).
type RetentionPolicy struct {
	KeepCount int `json:"keep_count"` // >= 1
	KeepDays  int `json:"keep_days"`  // >= 1
}

// Schedule is a recurring export definition that spawns Jobs on a cadence.
type Schedule struct {
	ID      uuid.UUID
	OwnerID uuid.UUID

	Name        string // unique per owner
	Description string

	Format           Format
	Fields           []FieldSpec // snapshot at creation, never re-read from template
	FilterSpec       []byte
	SortSpec         string
	RelatedInclusion []string

	Frequency  Frequency
	CustomExpr string // required iff Frequency == custom

	Retention  RetentionPolicy
	TemplateID *uuid.UUID

	IsActive  bool
	NextRunAt time.Time
	LastRunAt *time.Time

	RunCount     int
	SuccessCount int
	FailureCount int
	LastError    string

	CreatedAt time.Time
	UpdatedAt time.Time
}
