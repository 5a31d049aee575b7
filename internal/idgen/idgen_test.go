package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestSequencePrefixes(t *testing.T) {
	s := NewSequence()

	cases := map[Kind]string{
		KindCustomer:    "CUST-",
		KindAccount:     "ACC-",
		KindTransaction: "TX-",
	}
	for kind, prefix := range cases {
		id := s.Next(kind)
		if !strings.HasPrefix(id, prefix) {
			t.Errorf("expected prefix %s, got %s", prefix, id)
		}
	}
}

func TestSequenceUniqueUnderConcurrency(t *testing.T) {
	s := NewSequence()

	const workers = 16
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, s.Next(KindTransaction))
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d ids, got %d", workers*perWorker, len(seen))
	}
}

func TestSequenceObserve(t *testing.T) {
	s := NewSequence()
	s.Observe("ACC-000041")
	s.Observe("TX-000007")
	s.Observe("garbage")

	if got := s.Next(KindCustomer); got != "CUST-000042" {
		t.Errorf("expected CUST-000042, got %s", got)
	}
}

func TestUUIDGenerator(t *testing.T) {
	g := NewUUID()
	a := g.Next(KindAccount)
	b := g.Next(KindAccount)

	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !strings.HasPrefix(a, "ACC-") {
		t.Errorf("expected ACC- prefix, got %s", a)
	}
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	if _, err := New("clock"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}
