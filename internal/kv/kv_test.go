package kv

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureTable("records"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := testStore(t)

	err := s.Update(func(tx *Tx) error {
		return tx.Set("records", []byte("k1"), []byte("v1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.View(func(tx *Tx) error {
		v, err := tx.Get("records", []byte("k1"))
		if err != nil {
			return err
		}
		if !bytes.Equal(v, []byte("v1")) {
			t.Errorf("got %q, want v1", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(func(tx *Tx) error {
		return tx.Delete("records", []byte("k1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.View(func(tx *Tx) error {
		v, err := tx.Get("records", []byte("k1"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Errorf("got %q after delete, want nil", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := testStore(t)

	err := s.View(func(tx *Tx) error {
		v, err := tx.Get("records", []byte("missing"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Errorf("got %q for missing key, want nil", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSetReplacesExisting(t *testing.T) {
	s := testStore(t)

	err := s.Update(func(tx *Tx) error {
		if err := tx.Set("records", []byte("k"), []byte("old")); err != nil {
			return err
		}
		return tx.Set("records", []byte("k"), []byte("new"))
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = s.View(func(tx *Tx) error {
		v, _ := tx.Get("records", []byte("k"))
		if !bytes.Equal(v, []byte("new")) {
			t.Errorf("got %q, want new", v)
		}
		return nil
	})
}

func TestDeleteMissingIsNotError(t *testing.T) {
	s := testStore(t)

	err := s.Update(func(tx *Tx) error {
		return tx.Delete("records", []byte("never-there"))
	})
	if err != nil {
		t.Errorf("Delete missing key error = %v", err)
	}
}

func TestRangeOrderAndBounds(t *testing.T) {
	s := testStore(t)

	// Insert out of order; Range must yield ascending byte order.
	err := s.Update(func(tx *Tx) error {
		for _, k := range []string{"c", "a", "d", "b"} {
			if err := tx.Set("records", []byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var keys []string
	err = s.View(func(tx *Tx) error {
		return tx.Range("records", nil, nil, func(k, _ []byte) (bool, error) {
			keys = append(keys, string(k))
			return true, nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	// lo inclusive, hi exclusive.
	keys = nil
	_ = s.View(func(tx *Tx) error {
		return tx.Range("records", []byte("b"), []byte("d"), func(k, _ []byte) (bool, error) {
			keys = append(keys, string(k))
			return true, nil
		})
	})
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Errorf("bounded range = %v, want [b c]", keys)
	}
}

func TestRangeEarlyStop(t *testing.T) {
	s := testStore(t)

	_ = s.Update(func(tx *Tx) error {
		for _, k := range []string{"a", "b", "c"} {
			if err := tx.Set("records", []byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})

	var visited int
	_ = s.View(func(tx *Tx) error {
		return tx.Range("records", nil, nil, func(_, _ []byte) (bool, error) {
			visited++
			return visited < 2, nil
		})
	})
	if visited != 2 {
		t.Errorf("visited = %d, want 2 (early stop)", visited)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := testStore(t)

	boom := errors.New("boom")
	err := s.Update(func(tx *Tx) error {
		if err := tx.Set("records", []byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	_ = s.View(func(tx *Tx) error {
		v, _ := tx.Get("records", []byte("k"))
		if v != nil {
			t.Error("write survived a rolled-back transaction")
		}
		return nil
	})
}

func TestEnsureTableRejectsBadNames(t *testing.T) {
	s := testStore(t)

	for _, name := range []string{"", "Bad", "1abc", "has space", "x; DROP TABLE"} {
		if err := s.EnsureTable(name); err == nil {
			t.Errorf("EnsureTable(%q) should fail", name)
		}
	}
}
