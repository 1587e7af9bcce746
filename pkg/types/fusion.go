// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConfidenceLevel is the categorical bucket derived from a 0-100
// confidence score. The ordering very_low < low < medium < high <
// very_high is total; Rank exposes it for comparisons.
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
)

// Rank returns the position of the level in the total order, starting
// at 0 for very_low. Unknown levels rank below very_low.
func (l ConfidenceLevel) Rank() int {
	switch l {
	case ConfidenceVeryLow:
		return 0
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	case ConfidenceVeryHigh:
		return 4
	}
	return -1
}

// LevelForScore derives the confidence level from a 0-100 score.
// The thresholds match the fusion analyzer's buckets: >=90 very_high,
// >=75 high, >=60 medium, >=40 low, below 40 very_low.
func LevelForScore(score int) ConfidenceLevel {
	switch {
	case score >= 90:
		return ConfidenceVeryHigh
	case score >= 75:
		return ConfidenceHigh
	case score >= 60:
		return ConfidenceMedium
	case score >= 40:
		return ConfidenceLow
	}
	return ConfidenceVeryLow
}

// MergedItem is the unified checklist item produced by fusing source
// items, either drafted by the analyzer or authored by the user.
type MergedItem struct {
	Section    string       `json:"section" yaml:"section"`
	Subsection string       `json:"subsection,omitempty" yaml:"subsection,omitempty"`
	Text       string       `json:"text" yaml:"text"`
	Status     string       `json:"status,omitempty" yaml:"status,omitempty"`
	Options    []ItemOption `json:"options,omitempty" yaml:"options,omitempty"`
	Notes      string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Page       int          `json:"page,omitempty" yaml:"page,omitempty"`
}

// FusionCandidate is one merge proposal from the external analyzer.
// Candidates are read-only input to the reconciliation engine; every
// state change happens on the FusionRecord created from one.
type FusionCandidate struct {
	// FusionID identifies the proposal, unique within its batch.
	FusionID string `json:"fusion_id" yaml:"fusion_id"`

	// Doc1ItemIDs and Doc2ItemIDs reference items of the two source
	// documents by parser-assigned ID. Both are non-empty.
	Doc1ItemIDs []string `json:"doc1_item_ids" yaml:"doc1_item_ids"`
	Doc2ItemIDs []string `json:"doc2_item_ids" yaml:"doc2_item_ids"`

	// CanFuse reports whether the analyzer believes the items merge.
	CanFuse bool `json:"can_fuse" yaml:"can_fuse"`

	// ConfidenceScore is the analyzer's certainty, 0-100.
	ConfidenceScore int `json:"confidence_score" yaml:"confidence_score"`

	// Explanation is the analyzer's reasoning, never empty.
	Explanation string `json:"explanation" yaml:"explanation"`

	// MergedItem is the drafted unified item. Present exactly when
	// CanFuse is true.
	MergedItem *MergedItem `json:"merged_item,omitempty" yaml:"merged_item,omitempty"`
}

// Level returns the confidence level derived from the candidate score.
func (c FusionCandidate) Level() ConfidenceLevel {
	return LevelForScore(c.ConfidenceScore)
}

// ShouldAutoApply reports whether the candidate is strong enough for
// unattended application. Advisory metadata for the caller: the engine
// never applies a candidate without an explicit Accept.
func (c FusionCandidate) ShouldAutoApply() bool {
	return c.CanFuse && c.ConfidenceScore >= 80
}

// FusionKind records how a fusion record came to exist.
type FusionKind string

const (
	KindAIFused      FusionKind = "ai_fused"
	KindManual       FusionKind = "manual"
	KindEdited       FusionKind = "edited"
	KindKeptSeparate FusionKind = "kept_separate"
)

// FusionStatus is the lifecycle state of a fusion record.
type FusionStatus string

const (
	StatusPending  FusionStatus = "pending"
	StatusAccepted FusionStatus = "accepted"
	StatusRejected FusionStatus = "rejected"
	StatusEdited   FusionStatus = "edited"
)

// FusionRecord is the lifecycle object owned by the reconciliation
// engine. It is mutated only through engine operations.
type FusionRecord struct {
	FusionID string       `json:"fusion_id" yaml:"fusion_id"`
	Kind     FusionKind   `json:"kind" yaml:"kind"`
	Status   FusionStatus `json:"status" yaml:"status"`

	// Doc1Items and Doc2Items are the source item IDs the record covers.
	Doc1Items []string `json:"doc1_items" yaml:"doc1_items"`
	Doc2Items []string `json:"doc2_items" yaml:"doc2_items"`

	// MergedItem is the unified item exported when the record is
	// accepted or edited. Nil for kept_separate records.
	MergedItem *MergedItem `json:"merged_item,omitempty" yaml:"merged_item,omitempty"`

	// Draft preserves the analyzer's original merged item so an edit
	// can be undone without losing it. Nil for manual records.
	Draft *MergedItem `json:"draft,omitempty" yaml:"draft,omitempty"`

	ConfidenceScore int             `json:"confidence_score,omitempty" yaml:"confidence_score,omitempty"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level,omitempty" yaml:"confidence_level,omitempty"`
	Explanation     string          `json:"explanation,omitempty" yaml:"explanation,omitempty"`

	// Reason explains a kept_separate decision.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// SourceItemIDs returns the record's doc1 and doc2 item IDs as one slice.
func (r FusionRecord) SourceItemIDs() []string {
	ids := make([]string, 0, len(r.Doc1Items)+len(r.Doc2Items))
	ids = append(ids, r.Doc1Items...)
	ids = append(ids, r.Doc2Items...)
	return ids
}

// Active reports whether the record currently resolves its source items
// (anything except pending).
func (r FusionRecord) Active() bool {
	return r.Status != StatusPending
}

// HoldsItems reports whether the record's source items count as used
// for exclusivity tracking. Rejected and kept_separate records resolve
// their items without claiming them as fused.
func (r FusionRecord) HoldsItems() bool {
	return r.Status == StatusAccepted || r.Status == StatusEdited
}
