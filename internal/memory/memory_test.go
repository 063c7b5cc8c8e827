package memory

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

// fakeEmbedder returns canned vectors per input text; unknown text
// yields nil, simulating an unavailable embedding service.
type fakeEmbedder struct {
	vecs map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) []float32 {
	return f.vecs[text]
}

func newTestService(t *testing.T, vecs map[string][]float32) (*Service, *SQLiteStore) {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "memories.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store, &fakeEmbedder{vecs: vecs}), store
}

func TestIngest_DedupIdempotence(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, map[string][]float32{
		"met alice about the project": {0.1, 0.9, 0.2},
	})

	first, err := svc.Ingest(ctx, "user-1", "met alice about the project", "", TypeRawIngestion)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.Status != StatusSaved {
		t.Errorf("first status = %q, want %q", first.Status, StatusSaved)
	}

	second, err := svc.Ingest(ctx, "user-1", "met alice about the project", "", TypeRawIngestion)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.Status != StatusDuplicate {
		t.Errorf("second status = %q, want %q", second.Status, StatusDuplicate)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate id = %q, want existing id %q", second.ID, first.ID)
	}

	if n := store.Count(ctx, "user-1"); n != 1 {
		t.Errorf("store holds %d records, want 1", n)
	}
}

func TestIngest_TypeScopesDedup(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, map[string][]float32{
		"visited example.com": {0.5, 0.5, 0.5},
	})

	if _, err := svc.Ingest(ctx, "user-1", "visited example.com", "", TypeRawIngestion); err != nil {
		t.Fatalf("ingest raw: %v", err)
	}
	res, err := svc.Ingest(ctx, "user-1", "visited example.com", "", TypeBrowsingEvent)
	if err != nil {
		t.Fatalf("ingest browsing: %v", err)
	}
	if res.Status != StatusSaved {
		t.Errorf("cross-type ingest status = %q, want %q (dedup is per-type)", res.Status, StatusSaved)
	}
	if n := store.Count(ctx, "user-1"); n != 2 {
		t.Errorf("store holds %d records, want 2", n)
	}
}

func TestIngest_EmbeddingFailure(t *testing.T) {
	svc, store := newTestService(t, nil)

	_, err := svc.Ingest(context.Background(), "user-1", "anything", "", "")
	if err != ErrEmbeddingUnavailable {
		t.Errorf("err = %v, want ErrEmbeddingUnavailable", err)
	}
	if n := store.Count(context.Background(), "user-1"); n != 0 {
		t.Errorf("record stored despite embedding failure")
	}
}

func TestContentID_Deterministic(t *testing.T) {
	a := ContentID("user-1", "same text")
	b := ContentID("user-1", "same text")
	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}
	if c := ContentID("user-2", "same text"); c == a {
		t.Error("different users produced the same id")
	}
	if len(a) != 36 {
		t.Errorf("id %q is not UUID-shaped", a)
	}
}

func TestSearch_ThresholdAndOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, map[string][]float32{
		"close match":  {1, 0, 0},
		"weak match":   {0.5, 0.86, 0},
		"query vector": {1, 0.05, 0},
	})

	if _, err := svc.Ingest(ctx, "u", "close match", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Ingest(ctx, "u", "weak match", "", ""); err != nil {
		t.Fatal(err)
	}

	hits, err := svc.Search(ctx, "u", "query vector", 5, 0.45)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Memory != "close match" {
		t.Errorf("best hit = %q, want close match first", hits[0].Memory)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not ordered by descending score")
	}

	hits, err = svc.Search(ctx, "u", "query vector", 5, 0.995)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("high threshold returned %d hits, want 1", len(hits))
	}
}

func TestSearch_EmbeddingFailureYieldsEmpty(t *testing.T) {
	svc, _ := newTestService(t, nil)
	hits, err := svc.Search(context.Background(), "u", "anything", 5, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits, want 0", len(hits))
	}
}

func TestListPendingAndMarkProcessed(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, map[string][]float32{
		"schedule a meeting with bob friday": {0, 1, 0},
		"the sky is blue":                    {1, 0, 0},
	})

	res, err := svc.Ingest(ctx, "u", "schedule a meeting with bob friday", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Ingest(ctx, "u", "the sky is blue", "", ""); err != nil {
		t.Fatal(err)
	}

	pending, err := store.ListPending(ctx, "u", 20)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("%d pending, want 2", len(pending))
	}

	if err := store.MarkProcessed(ctx, res.ID); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	pending, err = store.ListPending(ctx, "u", 20)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("%d pending after mark, want 1", len(pending))
	}
	if pending[0].Memory != "the sky is blue" {
		t.Errorf("wrong record left pending: %q", pending[0].Memory)
	}

	if err := store.MarkProcessed(ctx, "missing-id"); err == nil {
		t.Error("MarkProcessed on unknown id should error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: %v, want 1", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths: %v, want 0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("nil vectors: %v, want 0", got)
	}
}
