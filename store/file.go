package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/etnz/folio"
)

// File stores the holdings of each user in dir/<user>.jsonl, one holding per
// line.
type File struct {
	dir string
	mu  sync.Mutex
	n   notifier
}

var _ Store = (*File)(nil)

// NewFile returns a store in dir, creating dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create store directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (s *File) path(user string) string { return filepath.Join(s.dir, user+".jsonl") }

// load reads the holdings of user. Records are not validated so that legacy
// holdings without an asset key are still listed.
func (s *File) load(user string) ([]folio.Holding, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}
	filename := s.path(user)
	content, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return []folio.Holding{}, nil
	}
	if err != nil {
		return nil, err
	}
	holdings := []folio.Holding{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for i := 1; scanner.Scan(); i++ {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var h folio.Holding
		if err := json.Unmarshal(line, &h); err != nil {
			return nil, fmt.Errorf("format error in %q on line %d: %w", filename, i, err)
		}
		holdings = append(holdings, h)
	}
	return holdings, scanner.Err()
}

// save writes the holdings of user atomically and notifies the watchers.
func (s *File) save(user string, holdings []folio.Holding) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, h := range holdings {
		if err := enc.Encode(h); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(s.dir, user+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(user)); err != nil {
		return fmt.Errorf("cannot save holdings of %q: %w", user, err)
	}
	s.n.publish(user, slices.Clone(holdings))
	return nil
}

func index(holdings []folio.Holding, id string) (int, error) {
	i := slices.IndexFunc(holdings, func(h folio.Holding) bool { return h.ID == id })
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return i, nil
}

func (s *File) List(ctx context.Context, user string) ([]folio.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(user)
}

func (s *File) Get(ctx context.Context, user, id string) (folio.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings, err := s.load(user)
	if err != nil {
		return folio.Holding{}, err
	}
	i, err := index(holdings, id)
	if err != nil {
		return folio.Holding{}, err
	}
	return holdings[i], nil
}

func (s *File) Add(ctx context.Context, user string, h folio.Holding) (folio.Holding, error) {
	h, err := prepare(h)
	if err != nil {
		return h, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings, err := s.load(user)
	if err != nil {
		return h, err
	}
	return h, s.save(user, append(holdings, h))
}

func (s *File) Update(ctx context.Context, user string, h folio.Holding) error {
	h = h.Normalize()
	if err := h.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings, err := s.load(user)
	if err != nil {
		return err
	}
	i, err := index(holdings, h.ID)
	if err != nil {
		return err
	}
	holdings[i] = h
	return s.save(user, holdings)
}

func (s *File) Delete(ctx context.Context, user, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings, err := s.load(user)
	if err != nil {
		return err
	}
	i, err := index(holdings, id)
	if err != nil {
		return err
	}
	return s.save(user, slices.Delete(holdings, i, i+1))
}

func (s *File) Reduce(ctx context.Context, user, id string, q folio.Quantity) (folio.Holding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings, err := s.load(user)
	if err != nil {
		return folio.Holding{}, false, err
	}
	i, err := index(holdings, id)
	if err != nil {
		return folio.Holding{}, false, err
	}
	h, deleted, err := holdings[i].Reduce(q)
	if err != nil {
		return h, false, err
	}
	if deleted {
		holdings = slices.Delete(holdings, i, i+1)
	} else {
		holdings[i] = h
	}
	return h, deleted, s.save(user, holdings)
}

func (s *File) Watch(user string) (<-chan []folio.Holding, func()) { return s.n.watch(user) }

func (s *File) Close() error {
	s.n.close()
	return nil
}
