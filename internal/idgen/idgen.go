package idgen

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCustomer    Kind = "CUST"
	KindAccount     Kind = "ACC"
	KindTransaction Kind = "TX"
)

type Generator interface {
	Next(kind Kind) string
}

// Sequence hands out CUST-000001 style identifiers from one counter shared by
// all kinds. Observe lets a reopened store push the counter past ids already in use.
type Sequence struct {
	counter atomic.Uint64
}

func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Next(kind Kind) string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%s-%06d", kind, n)
}

func (s *Sequence) Observe(id string) {
	idx := strings.LastIndexByte(id, '-')
	if idx < 0 {
		return
	}
	n, err := strconv.ParseUint(id[idx+1:], 10, 64)
	if err != nil {
		return
	}
	for {
		cur := s.counter.Load()
		if n <= cur || s.counter.CompareAndSwap(cur, n) {
			return
		}
	}
}

type UUID struct{}

func NewUUID() UUID {
	return UUID{}
}

func (UUID) Next(kind Kind) string {
	return fmt.Sprintf("%s-%s", kind, strings.ToUpper(uuid.NewString()))
}

func New(scheme string) (Generator, error) {
	switch scheme {
	case "", "sequence":
		return NewSequence(), nil
	case "uuid":
		return NewUUID(), nil
	default:
		return nil, fmt.Errorf("unknown id scheme: %s", scheme)
	}
}
