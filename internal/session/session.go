// Package session keeps the short-lived per-user query fragment used to
// resolve elliptical follow-ups such as "and stocks?".
package session

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultFollowUpTokens is the largest query, in whitespace tokens, treated as a follow-up.
const DefaultFollowUpTokens = 3

// Store is the keyed fragment store used by the advice pipeline.
type Store interface {
	// Merge folds query into the user's fragment and returns the effective query.
	Merge(userID, query string) string
	Get(userID string) (string, bool)
	Delete(userID string)
	Len() int
	// Sweep drops entries that expired at or before now and reports how many went.
	Sweep(now time.Time) int
}

type entry struct {
	fragment  string
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Each user's read-modify-write is atomic;
// different users never contend on a shared lock.
type MemoryStore struct {
	entries        *xsync.MapOf[string, entry]
	ttl            time.Duration
	followUpTokens int
	now            func() time.Time
}

type Option func(*MemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// WithFollowUpTokens overrides DefaultFollowUpTokens.
func WithFollowUpTokens(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.followUpTokens = n
		}
	}
}

// NewMemoryStore returns a store whose entries live for ttl after their last merge.
// A ttl of zero keeps entries until Delete.
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries:        xsync.NewMapOf[string, entry](),
		ttl:            ttl,
		followUpTokens: DefaultFollowUpTokens,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Merge(userID, query string) string {
	now := s.now()
	query = strings.TrimSpace(query)

	actual, _ := s.entries.Compute(userID, func(old entry, loaded bool) (entry, bool) {
		previous := ""
		if loaded && !s.expired(old, now) {
			previous = old.fragment
		}

		fragment := query
		switch {
		case query == "":
			fragment = previous
		case previous != "" && IsFollowUp(query, s.followUpTokens):
			fragment = previous + " " + query
		}
		return entry{fragment: fragment, expiresAt: s.expiry(now)}, false
	})
	return actual.fragment
}

func (s *MemoryStore) Get(userID string) (string, bool) {
	e, ok := s.entries.Load(userID)
	if !ok || s.expired(e, s.now()) {
		return "", false
	}
	return e.fragment, true
}

func (s *MemoryStore) Delete(userID string) {
	s.entries.Delete(userID)
}

func (s *MemoryStore) Len() int {
	return s.entries.Size()
}

func (s *MemoryStore) Sweep(now time.Time) int {
	var expired []string
	s.entries.Range(func(userID string, e entry) bool {
		if s.expired(e, now) {
			expired = append(expired, userID)
		}
		return true
	})

	removed := 0
	for _, userID := range expired {
		// re-check under the key's lock, a merge may have renewed it
		s.entries.Compute(userID, func(old entry, loaded bool) (entry, bool) {
			if loaded && s.expired(old, now) {
				removed++
				return old, true
			}
			return old, !loaded
		})
	}
	return removed
}

// RunJanitor sweeps expired entries every interval until ctx is done.
func RunJanitor(ctx context.Context, store Store, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := store.Sweep(now)
			if onSweep != nil && removed > 0 {
				onSweep(removed)
			}
		}
	}
}

// IsFollowUp reports whether query is short enough to extend the previous fragment.
func IsFollowUp(query string, maxTokens int) bool {
	return len(strings.Fields(query)) <= maxTokens
}

func (s *MemoryStore) expired(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (s *MemoryStore) expiry(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}
