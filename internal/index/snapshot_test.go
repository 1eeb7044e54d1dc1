package index

import (
	"math"
	"testing"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

func makeMetas(n int) []domain.DocumentMeta {
	metas := make([]domain.DocumentMeta, n)
	for i := range metas {
		metas[i] = domain.DocumentMeta{ID: string(rune('a' + i)), Content: "doc"}
	}
	return metas
}

func TestBuild_Validation(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Build(3, [][]float32{{1, 2}}, makeMetas(1))
		if err == nil {
			t.Fatal("expected error for wrong vector dimension")
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Build(2, [][]float32{{1, 2}}, makeMetas(2))
		if err == nil {
			t.Fatal("expected error for vectors/metadata length mismatch")
		}
	})

	t.Run("zero dimension", func(t *testing.T) {
		_, err := Build(0, nil, nil)
		if err == nil {
			t.Fatal("expected error for zero dimension")
		}
	})
}

func TestSnapshot_SearchOrdering(t *testing.T) {
	vectors := [][]float32{
		{0, 0}, // a: distance 5 from query
		{3, 4}, // b: distance 0
		{6, 8}, // c: distance 5
		{3, 5}, // d: distance 1
	}
	s, err := Build(2, vectors, makeMetas(4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := s.Search([]float32{3, 4}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 4 {
		t.Fatalf("expected 4 hits, got %d", len(hits))
	}
	if hits[0].Index != 1 || hits[0].Distance != 0 {
		t.Errorf("first hit = %+v, want index 1 distance 0", hits[0])
	}
	if hits[1].Index != 3 {
		t.Errorf("second hit index = %d, want 3", hits[1].Index)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not ordered ascending at %d: %f < %f", i, hits[i].Distance, hits[i-1].Distance)
		}
	}
	// Equal distances break ties by index for deterministic ordering
	if hits[2].Index != 0 || hits[3].Index != 2 {
		t.Errorf("tie break by index: got %d, %d, want 0, 2", hits[2].Index, hits[3].Index)
	}
}

func TestSnapshot_SearchKLimit(t *testing.T) {
	vectors := [][]float32{{0, 0}, {1, 1}, {2, 2}}
	s, err := Build(2, vectors, makeMetas(3))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := s.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}

	hits, err = s.Search([]float32{0, 0}, 0)
	if err != nil {
		t.Fatalf("Search k=0: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for k=0, got %d", len(hits))
	}
}

func TestSnapshot_SearchQueryDimMismatch(t *testing.T) {
	s, err := Build(2, [][]float32{{0, 0}}, makeMetas(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Search([]float32{1, 2, 3}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSnapshot_RebuildIdempotence(t *testing.T) {
	vectors := [][]float32{{0.1, 0.9}, {0.5, 0.5}, {0.9, 0.1}, {0.3, 0.3}}
	probes := [][]float32{{0.2, 0.8}, {0.6, 0.4}, {1, 0}}

	s1, err := Build(2, vectors, makeMetas(4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s2, err := Build(2, vectors, makeMetas(4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, probe := range probes {
		h1, err := s1.Search(probe, 4)
		if err != nil {
			t.Fatalf("Search s1: %v", err)
		}
		h2, err := s2.Search(probe, 4)
		if err != nil {
			t.Fatalf("Search s2: %v", err)
		}
		if len(h1) != len(h2) {
			t.Fatalf("hit counts differ: %d vs %d", len(h1), len(h2))
		}
		for i := range h1 {
			if h1[i].Index != h2[i].Index {
				t.Errorf("probe %v: ordering differs at %d: %d vs %d", probe, i, h1[i].Index, h2[i].Index)
			}
			if math.Abs(h1[i].Distance-h2[i].Distance) > 1e-12 {
				t.Errorf("probe %v: distance differs at %d", probe, i)
			}
		}
	}
}

func TestIndex_EmptyUntilSwap(t *testing.T) {
	ix := New()
	if _, _, err := ix.Search([]float32{1}, 1); err != domain.ErrIndexEmpty {
		t.Fatalf("expected ErrIndexEmpty, got %v", err)
	}

	s, err := Build(1, [][]float32{{1}}, makeMetas(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ix.Swap(s)

	hits, snap, err := ix.Search([]float32{1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || snap != s {
		t.Errorf("expected 1 hit against the installed snapshot")
	}
}

func TestIndex_SwapIsolation(t *testing.T) {
	ix := New()
	s1, _ := Build(1, [][]float32{{1}, {2}}, makeMetas(2))
	ix.Swap(s1)

	// A reader holds the old snapshot across a swap
	_, old, err := ix.Search([]float32{1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	s2, _ := Build(1, [][]float32{{5}}, makeMetas(1))
	ix.Swap(s2)

	if old.Len() != 2 {
		t.Errorf("old snapshot mutated by swap: len = %d", old.Len())
	}
	if ix.Current().Len() != 1 {
		t.Errorf("current snapshot len = %d, want 1", ix.Current().Len())
	}
}
