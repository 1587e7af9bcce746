// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fusion models merge proposals from the external fusion
// analyzer and validates them at the ingestion boundary. The analyzer
// itself is an external collaborator reached through the Analyzer
// interface; this package never invents candidates.
package fusion

import (
	"fmt"
	"strings"

	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// ValidationError describes one structural problem with a candidate.
// The zero FusionID means the candidate carried none.
type ValidationError struct {
	FusionID string `json:"fusion_id"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.FusionID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.FusionID, e.Field, e.Message)
}

// ValidateBatch checks a candidate batch against the two source
// documents and splits it into structurally valid candidates and an
// itemized error list. Invalid candidates are dropped loudly, never
// silently; valid candidates in the same batch still pass through.
func ValidateBatch(candidates []types.FusionCandidate, doc1, doc2 types.Document) ([]types.FusionCandidate, []ValidationError) {
	known1 := itemIDSet(doc1)
	known2 := itemIDSet(doc2)

	var valid []types.FusionCandidate
	var errs []ValidationError
	seen := make(map[string]bool)

	for _, c := range candidates {
		cErrs := validateCandidate(c, known1, known2)
		if c.FusionID != "" && seen[c.FusionID] {
			cErrs = append(cErrs, ValidationError{
				FusionID: c.FusionID,
				Field:    "fusion_id",
				Message:  "duplicate fusion ID in batch",
			})
		}
		seen[c.FusionID] = true

		if len(cErrs) > 0 {
			errs = append(errs, cErrs...)
			continue
		}
		valid = append(valid, c)
	}

	return valid, errs
}

func validateCandidate(c types.FusionCandidate, known1, known2 map[string]bool) []ValidationError {
	var errs []ValidationError

	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{
			FusionID: c.FusionID,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if c.FusionID == "" {
		fail("fusion_id", "missing")
	}
	if len(c.Doc1ItemIDs) == 0 {
		fail("doc1_item_ids", "empty")
	}
	if len(c.Doc2ItemIDs) == 0 {
		fail("doc2_item_ids", "empty")
	}
	for _, id := range c.Doc1ItemIDs {
		if !known1[id] {
			fail("doc1_item_ids", "unknown item %q", id)
		}
	}
	for _, id := range c.Doc2ItemIDs {
		if !known2[id] {
			fail("doc2_item_ids", "unknown item %q", id)
		}
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 100 {
		fail("confidence_score", "%d outside [0,100]", c.ConfidenceScore)
	}
	if strings.TrimSpace(c.Explanation) == "" {
		fail("explanation", "missing")
	}

	// CanFuse and the merged draft must agree: a fusable candidate
	// needs a draft with at least section and text, a non-fusable one
	// must not carry a draft.
	switch {
	case c.CanFuse && c.MergedItem == nil:
		fail("merged_item", "can_fuse is true but no merged item draft")
	case c.CanFuse && (c.MergedItem.Section == "" || strings.TrimSpace(c.MergedItem.Text) == ""):
		fail("merged_item", "draft missing section or text")
	case !c.CanFuse && c.MergedItem != nil:
		fail("merged_item", "can_fuse is false but a merged item draft is present")
	}

	return errs
}

func itemIDSet(doc types.Document) map[string]bool {
	set := make(map[string]bool)
	for _, item := range doc.Items() {
		set[item.ID] = true
	}
	return set
}
