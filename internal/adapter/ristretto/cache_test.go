package ristretto

import (
	"testing"
	"time"
)

func TestFrameCacheStoreAndLookup(t *testing.T) {
	fc, err := New(1<<20, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fc.Close()

	fc.StoreFrame("map:1:80x28", "● ·")
	fc.c.Wait()

	got, ok := fc.Frame("map:1:80x28")
	if !ok {
		t.Fatal("expected hit after store")
	}
	if got != "● ·" {
		t.Errorf("frame = %q, want %q", got, "● ·")
	}
	if _, ok := fc.Frame("map:2:80x28"); ok {
		t.Error("expected miss for a different key")
	}
	if r := fc.HitRatio(); r <= 0 || r >= 1 {
		t.Errorf("hit ratio = %v, want between 0 and 1", r)
	}
}

func TestFrameCacheInvalidate(t *testing.T) {
	fc, err := New(1<<20, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fc.Close()

	fc.StoreFrame("a", "frame a")
	fc.StoreFrame("b", "frame b")
	fc.c.Wait()

	fc.Invalidate()
	for _, k := range []string{"a", "b"} {
		if _, ok := fc.Frame(k); ok {
			t.Errorf("frame %q survived Invalidate", k)
		}
	}
}

func TestFrameCacheExpires(t *testing.T) {
	fc, err := New(1<<20, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fc.Close()

	fc.StoreFrame("k", "frame")
	fc.c.Wait()
	time.Sleep(50 * time.Millisecond)

	if _, ok := fc.Frame("k"); ok {
		t.Error("expected frame to expire")
	}
}

func TestNewRejectsNonPositiveCost(t *testing.T) {
	if _, err := New(0, time.Minute); err == nil {
		t.Fatal("expected error for zero max cost")
	}
}
