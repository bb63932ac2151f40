package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/storage"
)

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func makeRecord(model string, offset time.Duration) *storage.CallRecord {
	call := api.RestoreModelCall(api.NewCallID(),
		[]byte(`{"messages":[{"role":"user","content":"hi"}]}`),
		[]byte(`{"success":true}`),
		120*time.Millisecond, base.Add(offset))
	return &storage.CallRecord{
		Call:          call,
		Provider:      "cloudflare",
		Model:         model,
		ConnectionKey: "acct" + model,
		Status:        storage.StatusOK,
		Usage:         &api.ModelUsage{InputTokens: 5, OutputTokens: 2, TotalTokens: 7},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := makeRecord("llama", 0)
	if err := s.SaveCall(ctx, rec); err != nil {
		t.Fatalf("SaveCall failed: %v", err)
	}

	got, err := s.GetCall(ctx, rec.ID())
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if got.Model != "llama" {
		t.Errorf("Model = %q, want %q", got.Model, "llama")
	}
	if got.Call.Time() != 120*time.Millisecond {
		t.Errorf("Time() = %v", got.Call.Time())
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(0)
	_, err := s.GetCall(context.Background(), "call_missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveDuplicate(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	rec := makeRecord("llama", 0)
	s.SaveCall(ctx, rec)
	if err := s.SaveCall(ctx, rec); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	a, b, c := makeRecord("a", 0), makeRecord("b", time.Second), makeRecord("c", 2*time.Second)
	s.SaveCall(ctx, a)
	s.SaveCall(ctx, b)

	// Touch a so that b becomes least recently used.
	if _, err := s.GetCall(ctx, a.ID()); err != nil {
		t.Fatalf("GetCall(a): %v", err)
	}
	s.SaveCall(ctx, c)

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if _, err := s.GetCall(ctx, b.ID()); !errors.Is(err, storage.ErrNotFound) {
		t.Error("expected b to be evicted")
	}
	if _, err := s.GetCall(ctx, a.ID()); err != nil {
		t.Error("expected a to survive eviction")
	}
}

func TestTenantIsolation(t *testing.T) {
	s := New(0)
	ctxA := storage.WithTenant(context.Background(), "team-a")
	ctxB := storage.WithTenant(context.Background(), "team-b")

	rec := makeRecord("llama", 0)
	s.SaveCall(ctxA, rec)

	if _, err := s.GetCall(ctxB, rec.ID()); !errors.Is(err, storage.ErrNotFound) {
		t.Error("tenant b should not see tenant a's record")
	}
	if _, err := s.GetCall(ctxA, rec.ID()); err != nil {
		t.Errorf("tenant a GetCall: %v", err)
	}
	list, _ := s.ListCalls(ctxB, storage.ListOptions{})
	if len(list) != 0 {
		t.Errorf("tenant b listed %d records", len(list))
	}
}

func TestListCalls(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	var recs []*storage.CallRecord
	for i := 0; i < 5; i++ {
		model := "llama"
		if i%2 == 1 {
			model = "mistral"
		}
		rec := makeRecord(model, time.Duration(i)*time.Second)
		recs = append(recs, rec)
		s.SaveCall(ctx, rec)
	}
	failed := makeRecord("llama", 10*time.Second)
	failed.Status = storage.StatusError
	failed.Error = "Error calling llama: rate limited"
	s.SaveCall(ctx, failed)

	tests := []struct {
		name    string
		opts    storage.ListOptions
		wantIDs []string
	}{
		{"all newest first", storage.ListOptions{}, []string{failed.ID(), recs[4].ID(), recs[3].ID(), recs[2].ID(), recs[1].ID(), recs[0].ID()}},
		{"by model", storage.ListOptions{Model: "mistral"}, []string{recs[3].ID(), recs[1].ID()}},
		{"by status", storage.ListOptions{Status: storage.StatusError}, []string{failed.ID()}},
		{"limit", storage.ListOptions{Limit: 2}, []string{failed.ID(), recs[4].ID()}},
		{"after cursor", storage.ListOptions{After: recs[2].ID()}, []string{recs[1].ID(), recs[0].ID()}},
		{"since", storage.ListOptions{Since: base.Add(3 * time.Second), Model: "llama"}, []string{failed.ID(), recs[4].ID()}},
		{"unknown cursor", storage.ListOptions{After: "call_unknown"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListCalls(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListCalls: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, rec := range got {
				if rec.ID() != tt.wantIDs[i] {
					t.Errorf("[%d] = %s, want %s", i, rec.ID(), tt.wantIDs[i])
				}
			}
		})
	}
}

func TestConcurrentSave(t *testing.T) {
	s := New(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := makeRecord(fmt.Sprintf("m%d", i), time.Duration(i)*time.Millisecond)
			if err := s.SaveCall(ctx, rec); err != nil {
				t.Errorf("SaveCall: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}
