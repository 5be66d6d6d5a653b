package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is the JSON and storage shape of one normalized row.
type Opportunity struct {
	Index           int               `json:"index"`
	Sponsor         string            `json:"sponsor,omitempty"`
	OpportunityName string            `json:"opportunity_name,omitempty"`
	URL             string            `json:"url,omitempty"`
	Tags            []string          `json:"tags"`
	Amount          string            `json:"amount,omitempty"`
	DeadlineAt      *time.Time        `json:"deadline_at"`
	DeadlineType    string            `json:"deadline_type,omitempty"`
	IsRolling       bool              `json:"is_rolling"`
	Eligibility     string            `json:"eligibility_requirements,omitempty"`
	Description     string            `json:"description,omitempty"`
	Fields          map[string]string `json:"fields"` // every non-empty cell, keyed by column
}

// LoadRun is the record of one extraction + export cycle.
type LoadRun struct {
	ID                 uuid.UUID  `json:"id"`
	SourceID           string     `json:"source_id"`
	Status             string     `json:"status"` // completed, failed
	FailedStage        string     `json:"failed_stage,omitempty"`
	ErrorKind          string     `json:"error_kind,omitempty"`
	Error              string     `json:"error,omitempty"`
	RowsLoaded         int        `json:"rows_loaded"`
	TagsLoaded         int        `json:"tags_loaded"`
	MissingCredentials []string   `json:"missing_credentials"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}
