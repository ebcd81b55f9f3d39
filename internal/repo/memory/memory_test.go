package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, New())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	tgt := &domain.Target{Name: "api", URL: "https://example.com", Enabled: true}
	if err := s.Create(ctx, tgt); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tgt.URL = "https://mutated.example"

	got, err := s.Get(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != "https://example.com" {
		t.Fatalf("store shares memory with caller: %s", got.URL)
	}
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, &domain.ExecutionLog{Name: "api", Success: true, RunID: "r"})
		}()
	}
	wg.Wait()

	logs, _ := s.ByRun(ctx, "r")
	if len(logs) != 50 {
		t.Fatalf("want 50 logs, got %d", len(logs))
	}
}
