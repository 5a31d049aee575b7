package jsonfile

import (
	"bank_ledger/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var _ repository.Persister = (*Persister)(nil)

// Persister keeps the ledger in a single JSON document with customers,
// accounts and transactions keys. Writes go to path+".tmp" and are renamed
// over the real file.
type Persister struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Persister, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jsonfile: create dir: %w", err)
		}
	}
	return &Persister{path: path}, nil
}

func (p *Persister) Load(ctx context.Context) (*repository.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Open(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: open: %w", err)
	}
	defer f.Close()

	snapshot := repository.EmptySnapshot()
	if err := json.NewDecoder(f).Decode(snapshot); err != nil {
		return nil, fmt.Errorf("jsonfile: decode %s: %w", p.path, err)
	}
	return snapshot, nil
}

func (p *Persister) Save(ctx context.Context, snapshot *repository.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("jsonfile: encode: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("jsonfile: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("jsonfile: close: %w", err)
	}

	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}

func (p *Persister) Close() error {
	return nil
}
