package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.StoreConfig{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDocument(filename string) types.Document {
	return types.Document{
		Filename: filename,
		Sections: []types.Section{{
			ID:    "A",
			Title: "Labelling",
			Subsections: []types.Subsection{{
				Name: "General",
				Items: []types.ChecklistItem{
					{ID: "a.general.item_1", Section: "A", Subsection: "General", Text: "Product name visible", Status: "unchecked"},
					{ID: "a.general.item_2", Section: "A", Subsection: "General", Text: "Ingredients listed", Status: "checked"},
				},
			}},
		}},
	}
}

func testSession(id string) types.Session {
	return types.Session{
		ID:        id,
		Name:      "doc1 + doc2",
		Doc1Hash:  HashText("doc1 raw"),
		Doc2Hash:  HashText("doc2 raw"),
		Status:    types.SessionCreated,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func storeSessionDocs(t *testing.T, s *Store, sess types.Session) {
	t.Helper()
	ctx := context.Background()
	if err := s.SaveDocument(ctx, sess.Doc1Hash, testDocument("doc1.txt")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDocument(ctx, sess.Doc2Hash, testDocument("doc2.txt")); err != nil {
		t.Fatal(err)
	}
}

// --- document cache ---

func TestHashText(t *testing.T) {
	a := HashText("checklist text")
	b := HashText("checklist text")
	c := HashText("checklist text ")
	if a != b {
		t.Error("same text hashed differently")
	}
	if a == c {
		t.Error("different text hashed identically")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestDocumentCacheRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	doc := testDocument("audit.txt")
	hash := HashText("raw audit text")

	if err := s.SaveDocument(ctx, hash, doc); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadCachedDocument(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("cache miss after save")
	}
	if got.Filename != "audit.txt" || got.ItemCount() != 2 {
		t.Errorf("cached doc = %s with %d items", got.Filename, got.ItemCount())
	}
	if got.Sections[0].Subsections[0].Items[1].Status != "checked" {
		t.Error("item status lost in round trip")
	}
}

func TestDocumentCacheMiss(t *testing.T) {
	s := testStore(t)
	got, err := s.LoadCachedDocument(context.Background(), HashText("never parsed"))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("cache hit for unknown hash")
	}
}

func TestSaveDocumentOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	hash := HashText("raw")

	if err := s.SaveDocument(ctx, hash, testDocument("first.txt")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDocument(ctx, hash, testDocument("second.txt")); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadCachedDocument(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "second.txt" {
		t.Errorf("filename = %s, want second.txt", got.Filename)
	}
}

// --- sessions ---

func TestSessionRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := testSession("sess-1")
	storeSessionDocs(t, s, sess)

	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != sess.Name || got.Status != types.SessionCreated {
		t.Errorf("session = %+v", got)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, sess.CreatedAt)
	}
	if !got.AnalysisStartedAt.IsZero() {
		t.Error("unset timestamp came back non-zero")
	}
}

func TestUpdateSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := testSession("sess-1")
	storeSessionDocs(t, s, sess)
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sess.Status = types.SessionReady
	sess.AnalysisStartedAt = sess.CreatedAt.Add(time.Minute)
	sess.AnalysisEndedAt = sess.CreatedAt.Add(2 * time.Minute)
	sess.Stats = types.SessionStats{TotalSuggestions: 5, Pending: 3, Accepted: 2, AvgConfidence: 81.5}
	if err := s.UpdateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.SessionReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
	if got.Stats.TotalSuggestions != 5 || got.Stats.AvgConfidence != 81.5 {
		t.Errorf("stats = %+v", got.Stats)
	}
	if !got.AnalysisEndedAt.Equal(sess.AnalysisEndedAt) {
		t.Errorf("analysis ended at = %v", got.AnalysisEndedAt)
	}
}

func TestUpdateMissingSession(t *testing.T) {
	s := testStore(t)
	err := s.UpdateSession(context.Background(), testSession("ghost"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetMissingSession(t *testing.T) {
	s := testStore(t)
	_, err := s.GetSession(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSessionsOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := testSession("sess-old")
	newer := testSession("sess-new")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	storeSessionDocs(t, s, older)
	for _, sess := range []types.Session{older, newer} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "sess-new" || got[1].ID != "sess-old" {
		t.Errorf("sessions = %v", got)
	}
}

// --- fusion records ---

func testRecord(fusionID string, status types.FusionStatus) types.FusionRecord {
	return types.FusionRecord{
		FusionID:        fusionID,
		Kind:            types.KindAIFused,
		Status:          status,
		Doc1Items:       []string{"a.general.item_1"},
		Doc2Items:       []string{"b.general.item_1"},
		MergedItem:      &types.MergedItem{Section: "A", Text: "Merged requirement"},
		ConfidenceScore: 88,
		ConfidenceLevel: types.ConfidenceHigh,
		Explanation:     "same requirement",
		Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sessionWithRecords(t *testing.T, s *Store) string {
	t.Helper()
	ctx := context.Background()
	sess := testSession("sess-1")
	storeSessionDocs(t, s, sess)
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	return sess.ID
}

func TestPersistRecordUpserts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sessionID := sessionWithRecords(t, s)

	rec := testRecord("fusion-1", types.StatusPending)
	if err := s.PersistRecord(ctx, sessionID, rec); err != nil {
		t.Fatal(err)
	}

	rec.Status = types.StatusAccepted
	if err := s.PersistRecord(ctx, sessionID, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecords(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Status != types.StatusAccepted {
		t.Errorf("status = %s, want accepted", got[0].Status)
	}
	if got[0].MergedItem == nil || got[0].MergedItem.Text != "Merged requirement" {
		t.Error("merged item lost in round trip")
	}
}

func TestSaveRecordsReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sessionID := sessionWithRecords(t, s)

	first := []types.FusionRecord{
		testRecord("fusion-1", types.StatusPending),
		testRecord("fusion-2", types.StatusPending),
	}
	if err := s.SaveRecords(ctx, sessionID, first); err != nil {
		t.Fatal(err)
	}

	// fusion-2 was undone away; only fusion-1 survives.
	second := []types.FusionRecord{testRecord("fusion-1", types.StatusAccepted)}
	if err := s.SaveRecords(ctx, sessionID, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecords(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FusionID != "fusion-1" || got[0].Status != types.StatusAccepted {
		t.Errorf("records = %v", got)
	}
}

func TestLoadRecordsPreservesOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sessionID := sessionWithRecords(t, s)

	want := []string{"fusion-3", "fusion-1", "fusion-2"}
	var records []types.FusionRecord
	for _, id := range want {
		records = append(records, testRecord(id, types.StatusPending))
	}
	if err := s.SaveRecords(ctx, sessionID, records); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecords(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	for i, id := range want {
		if got[i].FusionID != id {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestLoadRecordsEmptySession(t *testing.T) {
	s := testStore(t)
	sessionID := sessionWithRecords(t, s)
	got, err := s.LoadRecords(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records for a fresh session", len(got))
	}
}

func TestReopenStoreKeepsData(t *testing.T) {
	dir := t.TempDir()
	cfg := types.StoreConfig{DataDir: dir}
	ctx := context.Background()

	s, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	hash := HashText("raw")
	if err := s.SaveDocument(ctx, hash, testDocument("doc.txt")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.LoadCachedDocument(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("document lost across reopen")
	}
}
