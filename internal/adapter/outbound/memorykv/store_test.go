package memorykv

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGetSetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("got v=%q ok=%v err=%v", v, ok, err)
	}

	existed, err := s.Delete(ctx, "k1")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, ok, _ := s.Get(ctx, "k1"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "ttl-key", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "ttl-key"); ok {
		t.Fatalf("expected expired key to be absent")
	}
	n, _ := s.Length(ctx)
	if n != 0 {
		t.Fatalf("expected length 0 after expiry, got %d", n)
	}
}

func TestAppendToListOrderPreserved(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i, v := range []string{"a", "b", "c"} {
		n, err := s.AppendToList(ctx, "stream", []byte(v), 0)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if n != i+1 {
			t.Fatalf("expected length %d, got %d", i+1, n)
		}
	}

	list, err := s.GetList(ctx, "stream")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(list) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(list))
	}
	for i, v := range want {
		if string(list[i]) != v {
			t.Fatalf("index %d: want %q got %q", i, v, list[i])
		}
	}
}

func TestKeysPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "client:a", []byte("1"), 0)
	_ = s.Set(ctx, "client:b", []byte("2"), 0)
	_ = s.Set(ctx, "token:x", []byte("3"), 0)

	keys, err := s.Keys(ctx, "client:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 client keys, got %d (%v)", len(keys), keys)
	}
}

func TestDeleteRemovesEitherKeyspace(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.AppendToList(ctx, "listkey", []byte("v"), 0)
	existed, err := s.Delete(ctx, "listkey")
	if err != nil || !existed {
		t.Fatalf("delete list key: existed=%v err=%v", existed, err)
	}
	list, _ := s.GetList(ctx, "listkey")
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %v", list)
	}
}
