// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export assembles the final unified checklist from a completed
// (or in-progress) reconciliation session and renders it to YAML, JSON,
// or an aligned text table.
package export

import (
	"fmt"
	"time"

	"github.com/pdiddy/checklist-fuser/internal/reconcile"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// EntryKind says which partition of the final checklist an entry
// belongs to.
type EntryKind string

const (
	// EntryMerged is a unified item produced by an accepted or edited
	// fusion. It subsumes its source items.
	EntryMerged EntryKind = "merged"

	// EntryRejectedOriginal is a source item that appeared in a rejected
	// (or kept-separate) fusion and carries that record's ID for
	// traceability.
	EntryRejectedOriginal EntryKind = "rejected_original"

	// EntryUnfused is a source item no fusion record resolved.
	EntryUnfused EntryKind = "unfused"
)

// UnfusedProvenance is the provenance value of entries no fusion
// record touched.
const UnfusedProvenance = "unfused"

// Entry is one line of the final checklist with its provenance.
type Entry struct {
	Kind EntryKind `json:"kind" yaml:"kind"`

	// Provenance is the fusion ID the entry derives from, or "unfused".
	Provenance string `json:"provenance" yaml:"provenance"`

	// Merged is set for merged entries.
	Merged *types.MergedItem `json:"merged,omitempty" yaml:"merged,omitempty"`

	// Item is the original source item for rejected-original and
	// unfused entries.
	Item *types.ChecklistItem `json:"item,omitempty" yaml:"item,omitempty"`

	// SourceDoc is the filename the original item came from. Empty for
	// merged entries, which derive from both documents.
	SourceDoc string `json:"source_doc,omitempty" yaml:"source_doc,omitempty"`
}

// Summary totals the final checklist by partition.
type Summary struct {
	TotalSourceItems  int `json:"total_source_items" yaml:"total_source_items"`
	Merged            int `json:"merged" yaml:"merged"`
	ItemsFused        int `json:"items_fused" yaml:"items_fused"`
	RejectedOriginals int `json:"rejected_originals" yaml:"rejected_originals"`
	KeptSeparate      int `json:"kept_separate" yaml:"kept_separate"`
	Unfused           int `json:"unfused" yaml:"unfused"`
}

// FinalChecklist is the assembled export: merged entries first, then
// rejected originals, then unfused items in document order.
type FinalChecklist struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Doc1        string    `json:"doc1" yaml:"doc1"`
	Doc2        string    `json:"doc2" yaml:"doc2"`
	Summary     Summary   `json:"summary" yaml:"summary"`
	Entries     []Entry   `json:"entries" yaml:"entries"`
}

// Assemble partitions every source item of the document pair into
// exactly one of merged-subsumed, rejected-original, or unfused, and
// fails if the accounting does not come out exact. Records referencing
// items outside the document pair also fail assembly.
func Assemble(state reconcile.State, doc1, doc2 types.Document) (FinalChecklist, error) {
	out := FinalChecklist{
		GeneratedAt: time.Now(),
		Doc1:        doc1.Filename,
		Doc2:        doc2.Filename,
	}

	byID := make(map[string]*types.ChecklistItem)
	sourceOf := make(map[string]string)
	order := make([]string, 0)
	for _, d := range []types.Document{doc1, doc2} {
		items := d.Items()
		for i := range items {
			item := items[i]
			if _, dup := byID[item.ID]; dup {
				return FinalChecklist{}, fmt.Errorf("assemble: item %s appears in both documents", item.ID)
			}
			byID[item.ID] = &item
			sourceOf[item.ID] = d.Filename
			order = append(order, item.ID)
		}
	}
	out.Summary.TotalSourceItems = len(order)

	// First pass over records: merged entries claim their source items,
	// rejected records nominate theirs for the rejected-original
	// partition. An item both subsumed by a merge and named by a
	// rejected record counts as consumed; the merge wins.
	consumed := make(map[string]bool)
	rejectedBy := make(map[string]string) // item ID → rejecting fusion ID
	for _, rec := range state.Records {
		for _, id := range rec.SourceItemIDs() {
			if byID[id] == nil {
				return FinalChecklist{}, fmt.Errorf("assemble: record %s references unknown item %s", rec.FusionID, id)
			}
		}
		switch {
		case rec.HoldsItems():
			if rec.MergedItem == nil {
				return FinalChecklist{}, fmt.Errorf("assemble: record %s is %s but has no merged item", rec.FusionID, rec.Status)
			}
			for _, id := range rec.SourceItemIDs() {
				if consumed[id] {
					return FinalChecklist{}, fmt.Errorf("assemble: item %s consumed by two fusions", id)
				}
				consumed[id] = true
			}
			out.Entries = append(out.Entries, Entry{
				Kind:       EntryMerged,
				Provenance: rec.FusionID,
				Merged:     rec.MergedItem,
			})
			out.Summary.Merged++
			out.Summary.ItemsFused += len(rec.SourceItemIDs())
		case rec.Status == types.StatusRejected:
			if rec.Kind == types.KindKeptSeparate {
				out.Summary.KeptSeparate++
			}
			for _, id := range rec.SourceItemIDs() {
				if _, seen := rejectedBy[id]; !seen {
					rejectedBy[id] = rec.FusionID
				}
			}
		}
	}

	// Used set must agree with what the records say.
	for id := range state.UsedItemIDs {
		if !consumed[id] {
			return FinalChecklist{}, fmt.Errorf("assemble: used item %s not covered by any accepted or edited record", id)
		}
	}
	for id := range consumed {
		if !state.UsedItemIDs[id] {
			return FinalChecklist{}, fmt.Errorf("assemble: item %s fused but missing from the used set", id)
		}
	}

	// Second pass in document order: rejected originals, then unfused.
	placed := len(consumed)
	var unfusedIDs []string
	for _, id := range order {
		if consumed[id] {
			continue
		}
		if fusionID, ok := rejectedBy[id]; ok {
			out.Entries = append(out.Entries, Entry{
				Kind:       EntryRejectedOriginal,
				Provenance: fusionID,
				Item:       byID[id],
				SourceDoc:  sourceOf[id],
			})
			out.Summary.RejectedOriginals++
			placed++
			continue
		}
		unfusedIDs = append(unfusedIDs, id)
	}
	for _, id := range unfusedIDs {
		out.Entries = append(out.Entries, Entry{
			Kind:       EntryUnfused,
			Provenance: UnfusedProvenance,
			Item:       byID[id],
			SourceDoc:  sourceOf[id],
		})
		out.Summary.Unfused++
		placed++
	}

	if placed != len(order) {
		return FinalChecklist{}, fmt.Errorf("assemble: placed %d of %d source items", placed, len(order))
	}
	return out, nil
}
