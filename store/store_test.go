package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stevemurr/simple-review-server/store"
)

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("Len empty", func(t *testing.T) {
		n, err := s.Len("test")
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Fatalf("expected 0 slots, got %d", n)
		}
	})

	t.Run("Append is monotonic", func(t *testing.T) {
		for want := 0; want < 3; want++ {
			id, err := s.Append("col1", map[string]any{"n": float64(want)})
			if err != nil {
				t.Fatal(err)
			}
			if id != want {
				t.Fatalf("expected id %d, got %d", want, id)
			}
		}
	})

	t.Run("Get", func(t *testing.T) {
		got, err := s.Get("col1", 1)
		if err != nil {
			t.Fatal(err)
		}
		if got["n"] != float64(1) {
			t.Fatalf("expected n=1, got %v", got["n"])
		}
	})

	t.Run("Get out of range", func(t *testing.T) {
		for _, id := range []int{-1, 3, 100} {
			if _, err := s.Get("col1", id); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("id %d: expected ErrNotFound, got %v", id, err)
			}
		}
	})

	t.Run("Get returns a copy", func(t *testing.T) {
		got, _ := s.Get("col1", 0)
		got["n"] = "mutated"
		again, _ := s.Get("col1", 0)
		if again["n"] != float64(0) {
			t.Fatalf("store was mutated through returned record: %v", again["n"])
		}
	})

	t.Run("Empty record is not missing", func(t *testing.T) {
		id, err := s.Append("empty", map[string]any{})
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.Get("empty", id)
		if err != nil {
			t.Fatalf("expected empty record, got %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no fields, got %v", got)
		}
	})

	t.Run("Tombstone", func(t *testing.T) {
		if err := s.Tombstone("col1", 1); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get("col1", 1); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after tombstone, got %v", err)
		}
		if err := s.Tombstone("col1", 1); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second tombstone, got %v", err)
		}
		n, _ := s.Len("col1")
		if n != 3 {
			t.Fatalf("tombstone must not shrink the collection, got %d", n)
		}
	})

	t.Run("Append after tombstone", func(t *testing.T) {
		id, err := s.Append("col1", map[string]any{"n": float64(3)})
		if err != nil {
			t.Fatal(err)
		}
		if id != 3 {
			t.Fatalf("expected id 3, got %d", id)
		}
	})

	t.Run("Slice keeps tombstones", func(t *testing.T) {
		got, err := s.Slice("col1", 0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 slots, got %d", len(got))
		}
		if got[1] != nil {
			t.Fatalf("expected nil tombstone at 1, got %v", got[1])
		}
		if got[2]["n"] != float64(2) {
			t.Fatalf("expected n=2 at 2, got %v", got[2])
		}

		got, err = s.Slice("col1", 10, 20)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty slice past end, got %d", len(got))
		}
	})

	t.Run("Replace keeps back-reference", func(t *testing.T) {
		id, _ := s.Append("reviews", map[string]any{"star": float64(1), "businessID": float64(7), "review": "meh"})
		got, err := s.Replace("reviews", id, map[string]any{"star": float64(4), "businessID": float64(99)}, "businessID")
		if err != nil {
			t.Fatal(err)
		}
		if got["businessID"] != float64(7) {
			t.Fatalf("expected businessID=7, got %v", got["businessID"])
		}
		if _, ok := got["review"]; ok {
			t.Fatal("replace must drop fields not in the new record")
		}
		stored, _ := s.Get("reviews", id)
		if stored["star"] != float64(4) || stored["businessID"] != float64(7) || len(stored) != 2 {
			t.Fatalf("unexpected stored record %v", stored)
		}
	})

	t.Run("Merge keeps back-reference", func(t *testing.T) {
		id, _ := s.Append("reviews", map[string]any{"star": float64(1), "dollar": float64(2), "businessID": float64(8)})
		got, err := s.Merge("reviews", id, map[string]any{"dollar": float64(4), "businessID": float64(0)}, "businessID")
		if err != nil {
			t.Fatal(err)
		}
		if got["star"] != float64(1) || got["dollar"] != float64(4) || got["businessID"] != float64(8) {
			t.Fatalf("unexpected merged record %v", got)
		}
	})

	t.Run("Replace and Merge missing", func(t *testing.T) {
		if _, err := s.Replace("col1", 1, map[string]any{}); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.Merge("col1", 42, map[string]any{"n": 1}); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AppendUnique", func(t *testing.T) {
		before, _ := s.Len("reviews")
		_, err := s.AppendUnique("reviews", map[string]any{"star": float64(5), "businessID": 7}, "businessID")
		if !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		after, _ := s.Len("reviews")
		if before != after {
			t.Fatalf("duplicate must not append: %d -> %d", before, after)
		}

		id, err := s.AppendUnique("reviews", map[string]any{"star": float64(5), "businessID": 12}, "businessID")
		if err != nil {
			t.Fatal(err)
		}
		if id != before {
			t.Fatalf("expected id %d, got %d", before, id)
		}
	})

	t.Run("AppendUnique ignores tombstones", func(t *testing.T) {
		id, _ := s.AppendUnique("reviews", map[string]any{"businessID": 30}, "businessID")
		if err := s.Tombstone("reviews", id); err != nil {
			t.Fatal(err)
		}
		if _, err := s.AppendUnique("reviews", map[string]any{"businessID": 30}, "businessID"); err != nil {
			t.Fatalf("tombstoned review must not block a new one: %v", err)
		}
	})

	t.Run("Collections are isolated", func(t *testing.T) {
		a, _ := s.Append("a", map[string]any{"x": float64(1)})
		b, _ := s.Append("b", map[string]any{"x": float64(2)})
		if a != 0 || b != 0 {
			t.Fatalf("expected independent ids, got a=%d b=%d", a, b)
		}
	})

	t.Run("Concurrent AppendUnique", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.AppendUnique("race", map[string]any{"businessID": 1}, "businessID"); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if ok != 1 {
			t.Fatalf("expected exactly one append to win, got %d", ok)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	runStoreTests(t, s)
}

func TestSqliteStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := store.NewSqliteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreTests(t, s)
}

func TestSqliteStoreReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSqliteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	s.Append("photos", map[string]any{"url": "a"})
	s.Append("photos", map[string]any{"url": "b"})
	s.Tombstone("photos", 0)
	s.Close()

	s, err = store.NewSqliteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get("photos", 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected tombstone to survive reopen, got %v", err)
	}
	got, err := s.Get("photos", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got["url"] != "b" {
		t.Fatalf("expected url=b, got %v", got["url"])
	}
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
	}{
		{"sqlite"},
		{"memory"},
		{""},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			s, err := store.New(tc.backend, filepath.Join(dir, tc.backend))
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := store.New("redis", dir)
		if err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	seed := `[{"name":"a"},null,{"name":"c"}]`
	if err := os.WriteFile(store.SeedPath(dir, "businesses"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	s := store.NewMemoryStore()
	loaded, err := store.Seed(s, dir, "businesses", "reviews")
	if err != nil {
		t.Fatal(err)
	}
	if loaded["businesses"] != 3 || loaded["reviews"] != 0 {
		t.Fatalf("unexpected load counts %v", loaded)
	}
	if _, err := s.Get("businesses", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected null seed entry to be a tombstone, got %v", err)
	}
	got, err := s.Get("businesses", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "c" {
		t.Fatalf("expected name=c, got %v", got["name"])
	}

	// A second seed must not duplicate slots.
	if _, err := store.Seed(s, dir, "businesses"); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Len("businesses"); n != 3 {
		t.Fatalf("expected 3 slots after reseed, got %d", n)
	}
}

func TestSeedMalformed(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(store.SeedPath(dir, "photos"), []byte(`{not json`), 0o644)
	if _, err := store.Seed(store.NewMemoryStore(), dir, "photos"); err == nil {
		t.Fatal("expected error for malformed seed file")
	}
}
