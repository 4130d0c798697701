package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateWithPrefix("req")
	parts := strings.Split(id, "_")
	if len(parts) != 2 || parts[0] != "req" {
		t.Fatalf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
	}
	if len(parts[1]) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(parts[1]))
	}
}

func TestNewRequestID(t *testing.T) {
	reqID := NewRequestID()

	if !strings.HasPrefix(reqID.String(), "req_") {
		t.Errorf("RequestID should start with 'req_', got: %s", reqID)
	}
	if !IsValidRequestID(reqID.String()) {
		t.Errorf("RequestID should be valid: %s", reqID)
	}
}

func TestIsValidRequestID(t *testing.T) {
	invalid := []string{
		"",
		"req_",
		"invalid",
		"sess_01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"req_zzzzzzzzzzzzzzzzzzzzzzzzzzz",
	}

	for _, s := range invalid {
		if IsValidRequestID(s) {
			t.Errorf("ID should be invalid: %q", s)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Millisecond)
	reqID := NewRequestID()
	after := time.Now().Add(time.Millisecond)

	ts, err := reqID.Timestamp()
	if err != nil {
		t.Fatalf("Failed to extract timestamp: %v", err)
	}
	if ts.Before(before.Truncate(time.Millisecond)) || ts.After(after) {
		t.Errorf("Timestamp %v should be between %v and %v", ts, before, after)
	}

	if _, err := RequestID("req_bogus").Timestamp(); err == nil {
		t.Error("Expected error for malformed id")
	}
}

func TestSortability(t *testing.T) {
	gen := NewGenerator()

	first := gen.Generate().String()
	time.Sleep(2 * time.Millisecond)
	second := gen.Generate().String()

	if first >= second {
		t.Errorf("IDs should sort by creation time: %s >= %s", first, second)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var (
		mu   sync.Mutex
		seen = make(map[RequestID]bool, workers*perWorker)
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				reqID := NewRequestID()
				mu.Lock()
				if seen[reqID] {
					t.Errorf("Duplicate ID generated: %s", reqID)
				}
				seen[reqID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("Expected %d unique IDs, got %d", workers*perWorker, len(seen))
	}
}
