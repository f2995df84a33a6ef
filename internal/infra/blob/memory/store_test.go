package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"trackrecon/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"run_id": "r1"}
	info, err := s.Put(ctx, "reports/a.xlsx", strings.NewReader("data"), core.PutOptions{ContentType: "x", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	md["run_id"] = "mutated"
	if info.Size != 4 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "reports/a.xlsx", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	head, err := s.Head(ctx, "reports/a.xlsx")
	if err != nil || head.Metadata["run_id"] != "r1" {
		t.Fatalf("head: %+v %v", head, err)
	}
	_, rc, err := s.Get(ctx, "reports/a.xlsx")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "data" {
		t.Fatalf("got %q", b)
	}
	list, _ := s.List(ctx, "reports/")
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if existed, _ := s.Delete(ctx, "reports/a.xlsx"); !existed {
		t.Fatalf("expected existed")
	}
	if existed, _ := s.Delete(ctx, "reports/a.xlsx"); existed {
		t.Fatalf("expected not existed")
	}
	if _, err := s.Head(ctx, "reports/a.xlsx"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "reports/a.xlsx"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestStoreConcurrentPutSingleWinner(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Put(context.Background(), "same", strings.NewReader("x"), core.PutOptions{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d", wins)
	}
}
