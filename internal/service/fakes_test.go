package service

import (
	"context"
	"errors"
	"sync"

	"fin-advisor/internal/models"
	"fin-advisor/internal/repository"
)

var errListenerDropped = errors.New("listener connection dropped")

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type staticSource []models.Document

func (s staticSource) Fetch(context.Context) []models.Document {
	return append([]models.Document(nil), s...)
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	getErr   error
	changes  chan models.ProfileChange
	listens  int
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (f *fakeProfiles) Upsert(_ context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profiles == nil {
		f.profiles = make(map[string]*models.Profile)
	}
	p, ok := f.profiles[userID]
	if !ok {
		p = &models.Profile{UserID: userID}
		f.profiles[userID] = p
	}
	if update.InvestmentType != nil {
		p.InvestmentType = *update.InvestmentType
	}
	if update.ExperienceLevel != nil {
		p.ExperienceLevel = *update.ExperienceLevel
	}
	out := *p
	return &out, nil
}

// Listen drains changes until ctx ends or the channel closes, which
// simulates a dropped listener connection.
func (f *fakeProfiles) Listen(ctx context.Context, fn func(models.ProfileChange)) error {
	f.mu.Lock()
	f.listens++
	changes := f.changes
	f.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch, ok := <-changes:
			if !ok {
				return errListenerDropped
			}
			fn(ch)
		}
	}
}

func (f *fakeProfiles) listenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func (p *recordingPublisher) Publish(userID string, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = make(map[string][][]byte)
	}
	p.payloads[userID] = append(p.payloads[userID], payload)
	return true
}

func (p *recordingPublisher) count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads[userID])
}

func (p *recordingPublisher) last(userID string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.payloads[userID]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}
