package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// --- test fixtures ---

func doc(filename, section string, texts ...string) types.Document {
	sub := types.Subsection{Name: "General"}
	for i, text := range texts {
		sub.Items = append(sub.Items, types.ChecklistItem{
			ID:         itemID(section, i+1),
			Section:    section,
			Subsection: "General",
			Text:       text,
		})
	}
	return types.Document{
		Filename: filename,
		Sections: []types.Section{{ID: section, Subsections: []types.Subsection{sub}}},
	}
}

func itemID(section string, n int) string {
	return map[string]string{"A": "a", "B": "b"}[section] + ".general.item_" + string(rune('0'+n))
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	doc1 := doc("doc1.txt", "A", "Product name visible", "Ingredients listed", "Batch number present")
	doc2 := doc("doc2.txt", "B", "Produktname sichtbar", "Zutaten aufgelistet")
	e := NewEngine(doc1, doc2)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func candidate(fusionID string, doc1IDs, doc2IDs []string, score int) types.FusionCandidate {
	return types.FusionCandidate{
		FusionID:        fusionID,
		Doc1ItemIDs:     doc1IDs,
		Doc2ItemIDs:     doc2IDs,
		CanFuse:         true,
		ConfidenceScore: score,
		Explanation:     "equivalent requirements",
		MergedItem:      &types.MergedItem{Section: "A", Text: "Merged requirement text"},
	}
}

func ingestOne(t *testing.T, e *Engine, score int) string {
	t.Helper()
	c := candidate("fusion-1", []string{itemID("A", 1)}, []string{itemID("B", 1)}, score)
	if n := e.Ingest([]types.FusionCandidate{c}); n != 1 {
		t.Fatalf("Ingest created %d records, want 1", n)
	}
	return c.FusionID
}

// --- ingest ---

func TestIngestCreatesPendingRecords(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)

	rec, err := e.Record(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != types.StatusPending || rec.Kind != types.KindAIFused {
		t.Errorf("record = %s/%s, want pending/ai_fused", rec.Status, rec.Kind)
	}
	if rec.ConfidenceLevel != types.ConfidenceVeryHigh {
		t.Errorf("level = %s, want very_high", rec.ConfidenceLevel)
	}
	if len(e.UsedItemIDs()) != 0 {
		t.Error("pending record must not hold items")
	}
}

func TestIngestIsAdditive(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}

	// Re-ingesting the same candidate does not reset the accepted record.
	c := candidate(id, []string{itemID("A", 1)}, []string{itemID("B", 1)}, 95)
	second := candidate("fusion-2", []string{itemID("A", 2)}, []string{itemID("B", 2)}, 70)
	if n := e.Ingest([]types.FusionCandidate{c, second}); n != 1 {
		t.Errorf("Ingest created %d records, want 1 (duplicate skipped)", n)
	}

	rec, _ := e.Record(id)
	if rec.Status != types.StatusAccepted {
		t.Errorf("re-ingest reset status to %s", rec.Status)
	}
}

// --- accept ---

func TestAcceptMarksItemsUsed(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)

	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}

	used := e.UsedItemIDs()
	if !used[itemID("A", 1)] || !used[itemID("B", 1)] {
		t.Errorf("used = %v, want both source items", used)
	}
	rec, _ := e.Record(id)
	if rec.Status != types.StatusAccepted {
		t.Errorf("status = %s, want accepted", rec.Status)
	}
}

func TestAcceptTwiceWarns(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}
	err := e.Accept(id)
	if !errors.Is(err, ErrAlreadyAccepted) {
		t.Errorf("second accept err = %v, want ErrAlreadyAccepted", err)
	}
	if len(e.UsedItemIDs()) != 2 {
		t.Error("double accept changed the used set")
	}
}

func TestAcceptUnknownRecord(t *testing.T) {
	e := testEngine(t)
	if err := e.Accept("nope"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestAcceptSharedItemFails(t *testing.T) {
	// Two candidates share a doc1 item; accepting the second must fail
	// the exclusivity precondition without touching state.
	e := testEngine(t)
	shared := itemID("A", 1)
	e.Ingest([]types.FusionCandidate{
		candidate("fusion-1", []string{shared}, []string{itemID("B", 1)}, 95),
		candidate("fusion-2", []string{shared}, []string{itemID("B", 2)}, 80),
	})

	if err := e.Accept("fusion-1"); err != nil {
		t.Fatal(err)
	}
	err := e.Accept("fusion-2")
	if !errors.Is(err, ErrItemUsed) {
		t.Fatalf("err = %v, want ErrItemUsed", err)
	}

	rec, _ := e.Record("fusion-2")
	if rec.Status != types.StatusPending {
		t.Errorf("failed accept mutated status to %s", rec.Status)
	}
}

func TestAcceptNonFusableCandidate(t *testing.T) {
	e := testEngine(t)
	c := candidate("fusion-1", []string{itemID("A", 1)}, []string{itemID("B", 1)}, 30)
	c.CanFuse = false
	c.MergedItem = nil
	e.Ingest([]types.FusionCandidate{c})

	if err := e.Accept("fusion-1"); !errors.Is(err, ErrNoMergedItem) {
		t.Errorf("err = %v, want ErrNoMergedItem", err)
	}
}

// --- reject ---

func TestRejectKeepsRecordForAudit(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)

	if err := e.Reject(id, "different scopes"); err != nil {
		t.Fatal(err)
	}

	rec, _ := e.Record(id)
	if rec.Status != types.StatusRejected {
		t.Errorf("status = %s, want rejected", rec.Status)
	}
	if rec.Reason != "different scopes" {
		t.Errorf("reason = %q", rec.Reason)
	}
	// Rejected items are accounted for, not claimed as fused.
	if len(e.UsedItemIDs()) != 0 {
		t.Error("reject added items to the used set")
	}
}

func TestRejectRequiresPending(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}
	if err := e.Reject(id, ""); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("err = %v, want ErrWrongStatus", err)
	}
}

// --- edit ---

func TestEditFromPending(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)

	merged := types.MergedItem{Section: "A", Text: "User-authored merged wording"}
	if err := e.Edit(id, merged); err != nil {
		t.Fatal(err)
	}

	rec, _ := e.Record(id)
	if rec.Status != types.StatusEdited || rec.Kind != types.KindEdited {
		t.Errorf("record = %s/%s, want edited/edited", rec.Status, rec.Kind)
	}
	if rec.MergedItem.Text != merged.Text {
		t.Errorf("merged text = %q", rec.MergedItem.Text)
	}
	// The analyzer draft survives for undo.
	if rec.Draft == nil || rec.Draft.Text != "Merged requirement text" {
		t.Error("draft lost on edit")
	}
	if !e.IsItemUsed(itemID("A", 1)) {
		t.Error("edit did not claim source items")
	}
}

func TestEditFromAccepted(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}
	if err := e.Edit(id, types.MergedItem{Section: "A", Text: "Amended"}); err != nil {
		t.Fatal(err)
	}
	rec, _ := e.Record(id)
	if rec.Status != types.StatusEdited {
		t.Errorf("status = %s, want edited", rec.Status)
	}
}

func TestEditRejectsInvalidMergedItem(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Edit(id, types.MergedItem{Section: "A"}); err == nil {
		t.Error("edit accepted a merged item with no text")
	}
}

func TestEditRejectedRecordFails(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Reject(id, ""); err != nil {
		t.Fatal(err)
	}
	err := e.Edit(id, types.MergedItem{Section: "A", Text: "x y z"})
	if !errors.Is(err, ErrWrongStatus) {
		t.Errorf("err = %v, want ErrWrongStatus", err)
	}
}

// --- manual fusion ---

func TestCreateManual(t *testing.T) {
	e := testEngine(t)
	rec, err := e.CreateManual(
		[]string{itemID("A", 1)},
		[]string{itemID("B", 1)},
		types.MergedItem{Section: "A", Text: "Hand-merged requirement"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != types.KindManual || rec.Status != types.StatusAccepted {
		t.Errorf("record = %s/%s, want manual/accepted", rec.Kind, rec.Status)
	}
	if rec.FusionID == "" {
		t.Error("manual record has no fusion ID")
	}
	if !e.IsItemUsed(itemID("A", 1)) || !e.IsItemUsed(itemID("B", 1)) {
		t.Error("manual fusion did not claim items")
	}
}

func TestCreateManualValidation(t *testing.T) {
	e := testEngine(t)
	merged := types.MergedItem{Section: "A", Text: "Merged text here"}

	if _, err := e.CreateManual(nil, []string{itemID("B", 1)}, merged); err == nil {
		t.Error("manual fusion with no doc1 items accepted")
	}
	if _, err := e.CreateManual([]string{"bogus"}, []string{itemID("B", 1)}, merged); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("err = %v, want ErrUnknownItem", err)
	}

	if _, err := e.CreateManual([]string{itemID("A", 1)}, []string{itemID("B", 1)}, merged); err != nil {
		t.Fatal(err)
	}
	_, err := e.CreateManual([]string{itemID("A", 1)}, []string{itemID("B", 2)}, merged)
	if !errors.Is(err, ErrItemUsed) {
		t.Errorf("err = %v, want ErrItemUsed", err)
	}
}

// --- keep separate ---

func TestKeepSeparate(t *testing.T) {
	e := testEngine(t)
	rec, err := e.KeepSeparate(
		[]string{itemID("A", 1)},
		[]string{itemID("B", 1)},
		"similar wording, different regulation",
	)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != types.KindKeptSeparate || rec.Status != types.StatusRejected {
		t.Errorf("record = %s/%s, want kept_separate/rejected", rec.Kind, rec.Status)
	}
	if len(e.UsedItemIDs()) != 0 {
		t.Error("keep-separate claimed items")
	}
}

// --- undo ---

func TestUndoAcceptRestoresState(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)

	before := e.Snapshot()
	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(id); err != nil {
		t.Fatal(err)
	}

	after := e.Snapshot()
	if len(after.UsedItemIDs) != len(before.UsedItemIDs) {
		t.Errorf("used after undo = %v, want %v", after.UsedItemIDs, before.UsedItemIDs)
	}
	rec, _ := e.Record(id)
	if rec.Status != types.StatusPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
}

func TestUndoEditRestoresDraft(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Edit(id, types.MergedItem{Section: "A", Text: "User wording"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(id); err != nil {
		t.Fatal(err)
	}

	rec, _ := e.Record(id)
	if rec.Status != types.StatusPending || rec.Kind != types.KindAIFused {
		t.Errorf("record = %s/%s, want pending/ai_fused", rec.Status, rec.Kind)
	}
	if rec.MergedItem == nil || rec.MergedItem.Text != "Merged requirement text" {
		t.Error("draft not restored on undo")
	}
	if e.IsItemUsed(itemID("A", 1)) {
		t.Error("undo did not release items")
	}
}

func TestUndoRejectReopens(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Reject(id, "reason"); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(id); err != nil {
		t.Fatal(err)
	}
	rec, _ := e.Record(id)
	if rec.Status != types.StatusPending || rec.Reason != "" {
		t.Errorf("record = %s reason=%q, want pending with no reason", rec.Status, rec.Reason)
	}
}

func TestUndoManualRemovesRecord(t *testing.T) {
	e := testEngine(t)
	rec, err := e.CreateManual(
		[]string{itemID("A", 1)},
		[]string{itemID("B", 1)},
		types.MergedItem{Section: "A", Text: "Hand-merged requirement"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(rec.FusionID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Record(rec.FusionID); !errors.Is(err, ErrRecordNotFound) {
		t.Error("manual record still present after undo")
	}
	if e.IsItemUsed(itemID("A", 1)) {
		t.Error("undo of manual fusion did not release items")
	}
}

func TestUndoPendingFails(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Undo(id); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("err = %v, want ErrWrongStatus", err)
	}
}

func TestUndoKeepsSharedItems(t *testing.T) {
	// An item can appear in several historical records. Undoing one
	// must not release items still held by another active record.
	e := testEngine(t)
	shared := itemID("A", 1)
	e.Ingest([]types.FusionCandidate{
		candidate("fusion-1", []string{shared}, []string{itemID("B", 1)}, 95),
		candidate("fusion-2", []string{shared}, []string{itemID("B", 2)}, 80),
	})

	if err := e.Accept("fusion-1"); err != nil {
		t.Fatal(err)
	}
	// fusion-2 cannot be accepted due to the shared item; reject then
	// undo it, and verify fusion-1's hold on the shared item survives.
	if err := e.Reject("fusion-2", ""); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo("fusion-2"); err != nil {
		t.Fatal(err)
	}
	if !e.IsItemUsed(shared) {
		t.Error("shared item released while still held by fusion-1")
	}
}

// --- restore ---

func TestRestoreRebuildsUsedSet(t *testing.T) {
	e := testEngine(t)
	id := ingestOne(t, e, 95)
	if err := e.Accept(id); err != nil {
		t.Fatal(err)
	}
	snapshot := e.Snapshot()

	fresh := testEngine(t)
	fresh.Restore(snapshot.Records)

	if !fresh.IsItemUsed(itemID("A", 1)) || !fresh.IsItemUsed(itemID("B", 1)) {
		t.Error("restore did not rebuild the used set")
	}
	rec, err := fresh.Record(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != types.StatusAccepted {
		t.Errorf("restored status = %s", rec.Status)
	}
}

// --- stats ---

func TestStats(t *testing.T) {
	e := testEngine(t)
	e.Ingest([]types.FusionCandidate{
		candidate("fusion-1", []string{itemID("A", 1)}, []string{itemID("B", 1)}, 90),
		candidate("fusion-2", []string{itemID("A", 2)}, []string{itemID("B", 2)}, 70),
	})
	if err := e.Accept("fusion-1"); err != nil {
		t.Fatal(err)
	}

	s := e.Stats()
	if s.TotalSuggestions != 2 || s.Accepted != 1 || s.Pending != 1 {
		t.Errorf("stats = %+v", s)
	}
	if s.AvgConfidence != 80 {
		t.Errorf("avg confidence = %v, want 80", s.AvgConfidence)
	}
}
