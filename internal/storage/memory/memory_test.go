package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/physioledger/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}

	value := []byte("abc")
	if err := s.Set(ctx, "k", value); err != nil {
		t.Fatal(err)
	}
	value[0] = 'x'

	got, ok, _ := s.Get(ctx, "k")
	if !ok || string(got) != "abc" {
		t.Errorf("Get = %q, %v; stored value must not alias the caller's", got, ok)
	}
	got[0] = 'y'
	if again, _, _ := s.Get(ctx, "k"); string(again) != "abc" {
		t.Errorf("Get = %q after mutating a returned copy", again)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if s.Used() != 0 {
		t.Errorf("Used = %d after delete, want 0", s.Used())
	}
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	s := New(WithQuota(10))

	if err := s.Set(ctx, "a", []byte("123456")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "b", []byte("12345")); !errors.Is(err, storage.ErrQuotaExceeded) {
		t.Fatalf("Set error = %v, want ErrQuotaExceeded", err)
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Error("rejected write was stored")
	}

	// Replacing a key only counts the size difference.
	if err := s.Set(ctx, "a", []byte("1234567890")); err != nil {
		t.Errorf("replacing within quota failed: %v", err)
	}
	if s.Used() != 10 {
		t.Errorf("Used = %d, want 10", s.Used())
	}
}
