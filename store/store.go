// Package store persists the holdings of each user.
//
// Two implementations are provided: File keeps one JSONL file per user, human
// readable and git friendly, and SQLite keeps every user in one database.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/etnz/folio"
)

var (
	// ErrNotFound is returned when no holding has the requested id.
	ErrNotFound = errors.New("holding not found")
	// ErrInvalidUser is returned for user names that cannot be stored.
	ErrInvalidUser = errors.New("invalid user name")
)

var userName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]*$`)

// Store is a collection of holdings per user.
type Store interface {
	// List returns the holdings of user in insertion order.
	List(ctx context.Context, user string) ([]folio.Holding, error)
	Get(ctx context.Context, user, id string) (folio.Holding, error)
	// Add normalizes and validates h, assigns it a new id and stores it.
	Add(ctx context.Context, user string, h folio.Holding) (folio.Holding, error)
	// Update replaces the holding with the same id.
	Update(ctx context.Context, user string, h folio.Holding) error
	Delete(ctx context.Context, user, id string) error
	// Reduce sells quantity q of holding id, and deletes it when only dust
	// remains. It returns the remaining holding and whether it was deleted.
	Reduce(ctx context.Context, user, id string, q folio.Quantity) (folio.Holding, bool, error)
	// Watch returns a channel receiving the holdings of user after each
	// change, and a function to stop watching.
	Watch(user string) (<-chan []folio.Holding, func())
	Close() error
}

func checkUser(user string) error {
	if !userName.MatchString(user) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	return nil
}

// prepare returns h ready to be added.
func prepare(h folio.Holding) (folio.Holding, error) {
	h = h.Normalize()
	if err := h.Validate(); err != nil {
		return h, err
	}
	h.ID = uuid.NewString()
	return h, nil
}

// notifier fans out holdings changes to watchers. A slow watcher only gets
// the latest list.
type notifier struct {
	mu       sync.Mutex
	watchers map[string]map[chan []folio.Holding]struct{}
}

func (n *notifier) watch(user string) (<-chan []folio.Holding, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.watchers == nil {
		n.watchers = make(map[string]map[chan []folio.Holding]struct{})
	}
	if n.watchers[user] == nil {
		n.watchers[user] = make(map[chan []folio.Holding]struct{})
	}
	c := make(chan []folio.Holding, 1)
	n.watchers[user][c] = struct{}{}
	var once sync.Once
	return c, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if _, ok := n.watchers[user][c]; ok {
				delete(n.watchers[user], c)
				close(c)
			}
		})
	}
}

func (n *notifier) publish(user string, holdings []folio.Holding) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for c := range n.watchers[user] {
		select {
		case <-c: // drop the stale pending list
		default:
		}
		c <- holdings
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, cs := range n.watchers {
		for c := range cs {
			close(c)
		}
	}
	n.watchers = nil
}
