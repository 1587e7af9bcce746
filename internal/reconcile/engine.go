// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile owns the authoritative mapping from source checklist
// items to the final unified checklist. One Engine instance serves one
// merge session; operations are synchronous and the engine is not safe
// for concurrent callers.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// Named precondition failures. Operations validate fully before
// mutating, so a returned error means nothing changed.
var (
	// ErrRecordNotFound means the fusion ID references no known record.
	ErrRecordNotFound = errors.New("fusion record not found")

	// ErrWrongStatus means the record is not in a status the operation
	// accepts.
	ErrWrongStatus = errors.New("operation not allowed in current status")

	// ErrAlreadyAccepted guards against double-accepts. Callers surface
	// it as a warning; the record state is untouched.
	ErrAlreadyAccepted = errors.New("fusion already accepted")

	// ErrItemUsed means a source item is already held by another
	// accepted or edited record.
	ErrItemUsed = errors.New("item already used by another fusion")

	// ErrUnknownItem means an item ID belongs to neither source document.
	ErrUnknownItem = errors.New("item not present in source documents")

	// ErrNoMergedItem means the candidate proposed no merge, so there
	// is nothing to accept. Reject or keep the pair separate instead.
	ErrNoMergedItem = errors.New("record has no merged item to accept")
)

// State is a snapshot of the engine for export and persistence.
type State struct {
	UsedItemIDs map[string]bool
	Records     []types.FusionRecord
}

// Engine tracks fusion records and item usage for one document pair.
type Engine struct {
	doc1IDs map[string]bool
	doc2IDs map[string]bool

	used    map[string]bool
	records []types.FusionRecord
	index   map[string]int // fusion ID → records offset

	now func() time.Time
}

// NewEngine creates an engine for a parsed document pair.
func NewEngine(doc1, doc2 types.Document) *Engine {
	e := &Engine{
		doc1IDs: make(map[string]bool),
		doc2IDs: make(map[string]bool),
		used:    make(map[string]bool),
		index:   make(map[string]int),
		now:     time.Now,
	}
	for _, item := range doc1.Items() {
		e.doc1IDs[item.ID] = true
	}
	for _, item := range doc2.Items() {
		e.doc2IDs[item.ID] = true
	}
	return e
}

// Ingest converts validated candidates into pending fusion records.
// Ingestion is additive: records from earlier batches keep their status,
// and a candidate whose fusion ID is already known is skipped rather
// than reset. Returns the number of records created.
func (e *Engine) Ingest(candidates []types.FusionCandidate) int {
	created := 0
	for _, c := range candidates {
		if _, ok := e.index[c.FusionID]; ok {
			continue
		}
		rec := types.FusionRecord{
			FusionID:        c.FusionID,
			Kind:            types.KindAIFused,
			Status:          types.StatusPending,
			Doc1Items:       append([]string(nil), c.Doc1ItemIDs...),
			Doc2Items:       append([]string(nil), c.Doc2ItemIDs...),
			MergedItem:      copyMerged(c.MergedItem),
			Draft:           copyMerged(c.MergedItem),
			ConfidenceScore: c.ConfidenceScore,
			ConfidenceLevel: c.Level(),
			Explanation:     c.Explanation,
			Timestamp:       e.now(),
		}
		e.index[rec.FusionID] = len(e.records)
		e.records = append(e.records, rec)
		created++
	}
	return created
}

// Accept commits a pending AI proposal: the record's drafted merged
// item joins the exportable result set and its source items become
// used. Fails without mutating when the record is missing, not
// pending, has no draft, or would double-claim an item.
func (e *Engine) Accept(fusionID string) error {
	rec, err := e.lookup(fusionID)
	if err != nil {
		return err
	}
	if rec.Status == types.StatusAccepted {
		return fmt.Errorf("%w: %s", ErrAlreadyAccepted, fusionID)
	}
	if rec.Status != types.StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrWrongStatus, fusionID, rec.Status)
	}
	if rec.MergedItem == nil {
		return fmt.Errorf("%w: %s", ErrNoMergedItem, fusionID)
	}
	if err := e.checkItemsFree(rec); err != nil {
		return err
	}

	rec.Status = types.StatusAccepted
	rec.Timestamp = e.now()
	e.markUsed(rec)
	return nil
}

// Reject resolves a pending proposal without fusing: the record is kept
// for audit and its source items count as accounted for, but they are
// never added to the used set. An empty reason is allowed.
func (e *Engine) Reject(fusionID, reason string) error {
	rec, err := e.lookup(fusionID)
	if err != nil {
		return err
	}
	if rec.Status != types.StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrWrongStatus, fusionID, rec.Status)
	}

	rec.Status = types.StatusRejected
	rec.Reason = reason
	rec.Timestamp = e.now()
	return nil
}

// Edit replaces an AI proposal's merged item with a user-authored one.
// Allowed from pending (reviewing before commit) or accepted (amending
// a committed fusion). Behaves like Accept for usage tracking; the
// analyzer's draft is preserved so the edit can be undone.
func (e *Engine) Edit(fusionID string, merged types.MergedItem) error {
	if err := validateMerged(merged); err != nil {
		return err
	}
	rec, err := e.lookup(fusionID)
	if err != nil {
		return err
	}
	if rec.Kind != types.KindAIFused && rec.Kind != types.KindEdited {
		return fmt.Errorf("%w: %s is a %s record", ErrWrongStatus, fusionID, rec.Kind)
	}
	switch rec.Status {
	case types.StatusPending:
		if err := e.checkItemsFree(rec); err != nil {
			return err
		}
	case types.StatusAccepted, types.StatusEdited:
		// Items already held by this record.
	default:
		return fmt.Errorf("%w: %s is %s", ErrWrongStatus, fusionID, rec.Status)
	}

	rec.Kind = types.KindEdited
	rec.Status = types.StatusEdited
	m := merged
	rec.MergedItem = &m
	rec.Timestamp = e.now()
	e.markUsed(rec)
	return nil
}

// CreateManual records a user-authored fusion with no analyzer
// candidate behind it. The record is immediately committed (usage
// tracked) and carries no confidence score.
func (e *Engine) CreateManual(doc1Items, doc2Items []string, merged types.MergedItem) (types.FusionRecord, error) {
	if err := validateMerged(merged); err != nil {
		return types.FusionRecord{}, err
	}
	if len(doc1Items) == 0 || len(doc2Items) == 0 {
		return types.FusionRecord{}, fmt.Errorf("manual fusion needs items from both documents")
	}
	if err := e.checkItemsKnown(doc1Items, doc2Items); err != nil {
		return types.FusionRecord{}, err
	}
	for _, id := range append(append([]string(nil), doc1Items...), doc2Items...) {
		if e.used[id] {
			return types.FusionRecord{}, fmt.Errorf("%w: %s", ErrItemUsed, id)
		}
	}

	m := merged
	rec := types.FusionRecord{
		FusionID:   "manual-" + uuid.NewString(),
		Kind:       types.KindManual,
		Status:     types.StatusAccepted,
		Doc1Items:  append([]string(nil), doc1Items...),
		Doc2Items:  append([]string(nil), doc2Items...),
		MergedItem: &m,
		Timestamp:  e.now(),
	}
	e.index[rec.FusionID] = len(e.records)
	e.records = append(e.records, rec)
	e.markUsed(&e.records[len(e.records)-1])
	return rec, nil
}

// KeepSeparate records a reviewed pair the user chose not to merge.
// Like a reject, the items are accounted for without being fused.
func (e *Engine) KeepSeparate(doc1Items, doc2Items []string, reason string) (types.FusionRecord, error) {
	if len(doc1Items) == 0 || len(doc2Items) == 0 {
		return types.FusionRecord{}, fmt.Errorf("keep-separate needs items from both documents")
	}
	if err := e.checkItemsKnown(doc1Items, doc2Items); err != nil {
		return types.FusionRecord{}, err
	}

	rec := types.FusionRecord{
		FusionID:  "separate-" + uuid.NewString(),
		Kind:      types.KindKeptSeparate,
		Status:    types.StatusRejected,
		Doc1Items: append([]string(nil), doc1Items...),
		Doc2Items: append([]string(nil), doc2Items...),
		Reason:    reason,
		Timestamp: e.now(),
	}
	e.index[rec.FusionID] = len(e.records)
	e.records = append(e.records, rec)
	return rec, nil
}

// Undo reverses an accept, reject, or edit, returning the record to
// pending. Purely manual records (manual fusions and keep-separates)
// have no pending state and are removed entirely. Source items are
// released from the used set unless another accepted or edited record
// still references them.
func (e *Engine) Undo(fusionID string) error {
	rec, err := e.lookup(fusionID)
	if err != nil {
		return err
	}

	switch rec.Kind {
	case types.KindManual, types.KindKeptSeparate:
		e.releaseItems(rec)
		e.remove(fusionID)
		return nil
	}

	switch rec.Status {
	case types.StatusAccepted:
		rec.Status = types.StatusPending
		e.releaseItems(rec)
	case types.StatusEdited:
		rec.Status = types.StatusPending
		rec.Kind = types.KindAIFused
		rec.MergedItem = copyMerged(rec.Draft)
		e.releaseItems(rec)
	case types.StatusRejected:
		rec.Status = types.StatusPending
		rec.Reason = ""
	default:
		return fmt.Errorf("%w: %s is %s", ErrWrongStatus, fusionID, rec.Status)
	}
	rec.Timestamp = e.now()
	return nil
}

// Record returns a copy of the record for fusionID.
func (e *Engine) Record(fusionID string) (types.FusionRecord, error) {
	rec, err := e.lookup(fusionID)
	if err != nil {
		return types.FusionRecord{}, err
	}
	return *rec, nil
}

// Records returns a copy of all records in creation order.
func (e *Engine) Records() []types.FusionRecord {
	return append([]types.FusionRecord(nil), e.records...)
}

// UsedItemIDs returns a copy of the set of item IDs held by accepted
// and edited records.
func (e *Engine) UsedItemIDs() map[string]bool {
	out := make(map[string]bool, len(e.used))
	for id := range e.used {
		out[id] = true
	}
	return out
}

// IsItemUsed reports whether an item is held by an accepted or edited record.
func (e *Engine) IsItemUsed(itemID string) bool {
	return e.used[itemID]
}

// Snapshot captures the engine state for export or persistence.
func (e *Engine) Snapshot() State {
	return State{
		UsedItemIDs: e.UsedItemIDs(),
		Records:     e.Records(),
	}
}

// Restore replays persisted records into the engine, rebuilding the
// used set. It replaces any existing records.
func (e *Engine) Restore(records []types.FusionRecord) {
	e.records = append([]types.FusionRecord(nil), records...)
	e.index = make(map[string]int, len(records))
	e.used = make(map[string]bool)
	for i := range e.records {
		rec := &e.records[i]
		e.index[rec.FusionID] = i
		if rec.HoldsItems() {
			e.markUsed(rec)
		}
	}
}

// Stats aggregates the session's records.
func (e *Engine) Stats() types.SessionStats {
	var s types.SessionStats
	total, scored := 0, 0
	for _, rec := range e.records {
		s.TotalSuggestions++
		switch rec.Status {
		case types.StatusPending:
			s.Pending++
		case types.StatusAccepted:
			s.Accepted++
		case types.StatusRejected:
			s.Rejected++
		case types.StatusEdited:
			s.Edited++
		}
		if rec.Kind != types.KindManual && rec.Kind != types.KindKeptSeparate {
			total += rec.ConfidenceScore
			scored++
		}
	}
	if scored > 0 {
		s.AvgConfidence = float64(total) / float64(scored)
	}
	return s
}

// --- internals ---

func (e *Engine) lookup(fusionID string) (*types.FusionRecord, error) {
	i, ok := e.index[fusionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, fusionID)
	}
	return &e.records[i], nil
}

func (e *Engine) remove(fusionID string) {
	i := e.index[fusionID]
	e.records = append(e.records[:i], e.records[i+1:]...)
	delete(e.index, fusionID)
	for j := i; j < len(e.records); j++ {
		e.index[e.records[j].FusionID] = j
	}
}

// checkItemsFree fails when any of the record's source items is already
// held by a different accepted or edited record.
func (e *Engine) checkItemsFree(rec *types.FusionRecord) error {
	for _, id := range rec.SourceItemIDs() {
		if e.used[id] {
			return fmt.Errorf("%w: %s", ErrItemUsed, id)
		}
	}
	return nil
}

func (e *Engine) checkItemsKnown(doc1Items, doc2Items []string) error {
	for _, id := range doc1Items {
		if !e.doc1IDs[id] {
			return fmt.Errorf("%w: %s (document 1)", ErrUnknownItem, id)
		}
	}
	for _, id := range doc2Items {
		if !e.doc2IDs[id] {
			return fmt.Errorf("%w: %s (document 2)", ErrUnknownItem, id)
		}
	}
	return nil
}

func (e *Engine) markUsed(rec *types.FusionRecord) {
	for _, id := range rec.SourceItemIDs() {
		e.used[id] = true
	}
}

// releaseItems removes the record's source items from the used set,
// keeping any item still referenced by another holding record.
func (e *Engine) releaseItems(rec *types.FusionRecord) {
	for _, id := range rec.SourceItemIDs() {
		if !e.used[id] {
			continue
		}
		held := false
		for i := range e.records {
			other := &e.records[i]
			if other.FusionID == rec.FusionID || !other.HoldsItems() {
				continue
			}
			for _, oid := range other.SourceItemIDs() {
				if oid == id {
					held = true
					break
				}
			}
			if held {
				break
			}
		}
		if !held {
			delete(e.used, id)
		}
	}
}

func validateMerged(m types.MergedItem) error {
	if m.Section == "" || strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("merged item needs a section and text")
	}
	return nil
}

func copyMerged(m *types.MergedItem) *types.MergedItem {
	if m == nil {
		return nil
	}
	c := *m
	c.Options = append([]types.ItemOption(nil), m.Options...)
	return &c
}
