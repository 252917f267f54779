package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore(ttl, WithClock(clock.Now)), clock
}

func TestMerge_FirstCallWithoutHistory(t *testing.T) {
	s, _ := newStore(time.Hour)
	assert.Equal(t, "stocks", s.Merge("u1", "stocks"))

	got, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "stocks", got)
}

func TestMerge_FollowUpsAccumulateInOrder(t *testing.T) {
	s, _ := newStore(time.Hour)
	s.Merge("u1", "stocks")
	assert.Equal(t, "stocks bonds", s.Merge("u1", "bonds"))
	assert.Equal(t, "stocks bonds and reits?", s.Merge("u1", "and reits?"))
}

func TestMerge_LongQueryReplaces(t *testing.T) {
	s, _ := newStore(time.Hour)
	s.Merge("u1", "stocks")

	long := "what are index funds and how do they compare to ETFs for retirement"
	assert.Equal(t, long, s.Merge("u1", long))

	got, _ := s.Get("u1")
	assert.Equal(t, long, got)
	assert.Equal(t, long+" and bonds?", s.Merge("u1", "and bonds?"))
}

func TestMerge_UsersAreIndependent(t *testing.T) {
	s, _ := newStore(time.Hour)
	s.Merge("u1", "stocks")
	assert.Equal(t, "bonds", s.Merge("u2", "bonds"))
	assert.Equal(t, 2, s.Len())
}

func TestMerge_ExpiredFragmentIsIgnored(t *testing.T) {
	s, clock := newStore(time.Minute)
	s.Merge("u1", "stocks")

	clock.Advance(2 * time.Minute)
	_, ok := s.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, "bonds", s.Merge("u1", "bonds"))
}

func TestMerge_RenewsTTL(t *testing.T) {
	s, clock := newStore(time.Minute)
	s.Merge("u1", "stocks")
	clock.Advance(50 * time.Second)
	s.Merge("u1", "bonds")
	clock.Advance(50 * time.Second)

	got, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "stocks bonds", got)
}

func TestMerge_ZeroTTLNeverExpires(t *testing.T) {
	s, clock := newStore(0)
	s.Merge("u1", "stocks")
	clock.Advance(1000 * time.Hour)
	_, ok := s.Get("u1")
	assert.True(t, ok)
	assert.Zero(t, s.Sweep(clock.Now()))
}

func TestSweep(t *testing.T) {
	s, clock := newStore(time.Minute)
	s.Merge("old", "stocks")
	clock.Advance(30 * time.Second)
	s.Merge("fresh", "bonds")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, s.Sweep(clock.Now()))
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	s, _ := newStore(time.Hour)
	s.Merge("u1", "stocks")
	s.Delete("u1")
	_, ok := s.Get("u1")
	assert.False(t, ok)
}

func TestIsFollowUp(t *testing.T) {
	assert.True(t, IsFollowUp("and stocks?", 3))
	assert.True(t, IsFollowUp("what about bonds", 3))
	assert.True(t, IsFollowUp("", 3))
	assert.False(t, IsFollowUp("what about bonds now", 3))
}

func TestWithFollowUpTokens(t *testing.T) {
	s := NewMemoryStore(time.Hour, WithFollowUpTokens(1))
	s.Merge("u1", "stocks")
	assert.Equal(t, "what about bonds", s.Merge("u1", "what about bonds"))
}

func TestMerge_ConcurrentUsers(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			s.Merge(user, "stocks")
			s.Merge(user, "bonds")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	for i := 0; i < 50; i++ {
		got, ok := s.Get(fmt.Sprintf("u%d", i))
		require.True(t, ok)
		assert.Equal(t, "stocks bonds", got)
	}
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	s := NewMemoryStore(time.Nanosecond)
	s.Merge("u1", "stocks")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	swept := make(chan int, 10)
	go func() {
		RunJanitor(ctx, s, time.Millisecond, func(n int) { swept <- n })
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not sweep")
	}
	cancel()
	<-done
}

func TestMerge_BlankQueryKeepsFragment(t *testing.T) {
	s, _ := newStore(time.Hour)
	s.Merge("u1", "stocks")
	assert.Equal(t, "stocks", s.Merge("u1", "   "))
}
