// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SessionStatus tracks a merge session through the analysis workflow.
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionAnalyzing SessionStatus = "analyzing"
	SessionReady     SessionStatus = "ready"
	SessionCompleted SessionStatus = "completed"
)

// Session pairs two parsed documents for reconciliation. One engine
// instance owns one session's state at a time; the store persists the
// session and its records between CLI invocations.
type Session struct {
	// ID is a generated UUID.
	ID string `json:"id" yaml:"id"`

	// Name is a human label, defaulted from the document filenames.
	Name string `json:"name" yaml:"name"`

	// Doc1Hash and Doc2Hash key the cached parsed documents.
	Doc1Hash string `json:"doc1_hash" yaml:"doc1_hash"`
	Doc2Hash string `json:"doc2_hash" yaml:"doc2_hash"`

	Status SessionStatus `json:"status" yaml:"status"`

	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	AnalysisStartedAt time.Time `json:"analysis_started_at,omitempty" yaml:"analysis_started_at,omitempty"`
	AnalysisEndedAt   time.Time `json:"analysis_ended_at,omitempty" yaml:"analysis_ended_at,omitempty"`
	CompletedAt       time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	Stats SessionStats `json:"stats" yaml:"stats"`
}

// SessionStats aggregates the session's fusion records.
type SessionStats struct {
	TotalSuggestions int     `json:"total_suggestions" yaml:"total_suggestions"`
	Pending          int     `json:"pending" yaml:"pending"`
	Accepted         int     `json:"accepted" yaml:"accepted"`
	Rejected         int     `json:"rejected" yaml:"rejected"`
	Edited           int     `json:"edited" yaml:"edited"`
	AvgConfidence    float64 `json:"avg_confidence" yaml:"avg_confidence"`
}
