package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fin-advisor/internal/embedding"
	"fin-advisor/internal/models"
	"fin-advisor/internal/prompt"
	"fin-advisor/internal/session"
	"fin-advisor/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type adviceFixture struct {
	svc       *AdviceService
	generator *fakeGenerator
	profiles  *fakeProfiles
	sessions  *session.MemoryStore
	publisher *recordingPublisher
	persona   *prompt.Persona
}

func newAdviceFixture(t *testing.T, reply string) *adviceFixture {
	t.Helper()

	rag := NewRAGService(corpus(
		"Bond yields climb as inflation cools",
		"Tech stocks rally on earnings",
		"REITs pay steady dividends",
	), embedding.NewTFIDF(), &config.RAGConfig{TopK: 2}, zap.NewNop())
	_, err := rag.Refresh(context.Background())
	require.NoError(t, err)

	f := &adviceFixture{
		generator: &fakeGenerator{reply: reply},
		profiles:  &fakeProfiles{},
		sessions:  session.NewMemoryStore(time.Hour),
		publisher: &recordingPublisher{},
		persona:   prompt.DefaultPersona(),
	}
	f.svc = NewAdviceService(f.sessions, rag, f.profiles, prompt.NewComposer(f.persona), f.generator, f.publisher, zap.NewNop())
	return f
}

func TestAnswer_NoProfileAsksClarifyingQuestion(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantSummary bool
	}{
		{"two sentences", "What is your risk tolerance? Tell me more. I can then suggest options.", true},
		{"one sentence", "What is your risk tolerance?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdviceFixture(t, tt.reply)

			rec, err := f.svc.Answer(context.Background(), "u1", "What should I invest in?")
			require.NoError(t, err)

			p := f.generator.lastPrompt()
			assert.Contains(t, p, f.persona.Persona)
			assert.Contains(t, p, "What should I invest in?")
			assert.Contains(t, p, "has not shared an investment profile")
			assert.Contains(t, p, "clarifying question")
			assert.Equal(t, tt.wantSummary, rec.Summary != "")
		})
	}
}

func TestAnswer_WithProfile(t *testing.T) {
	f := newAdviceFixture(t, "Index funds suit you. Start small.")
	f.profiles.profiles = map[string]*models.Profile{
		"u1": {UserID: "u1", InvestmentType: models.InvestmentLongTerm, ExperienceLevel: models.ExperienceBeginner},
	}

	rec, err := f.svc.Answer(context.Background(), "u1", "tech stocks")
	require.NoError(t, err)
	assert.Equal(t, "Start small", rec.Summary)

	p := f.generator.lastPrompt()
	assert.Contains(t, p, "beginner")
	assert.Contains(t, p, "long-term")
	assert.Contains(t, p, "Tech stocks rally on earnings")
}

func TestAnswer_ProfileStoreFailureMeansNoProfile(t *testing.T) {
	f := newAdviceFixture(t, "Tell me your horizon.")
	f.profiles.getErr = errors.New("connection refused")

	_, err := f.svc.Answer(context.Background(), "u1", "What should I invest in?")
	require.NoError(t, err)

	assert.Contains(t, f.generator.lastPrompt(), "has not shared an investment profile")
}

func TestAnswer_MergesFollowUps(t *testing.T) {
	f := newAdviceFixture(t, "ok")

	_, err := f.svc.Answer(context.Background(), "u1", "stocks")
	require.NoError(t, err)
	_, err = f.svc.Answer(context.Background(), "u1", "bonds")
	require.NoError(t, err)

	assert.Contains(t, f.generator.lastPrompt(), "stocks bonds")
	fragment, ok := f.sessions.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "stocks bonds", fragment)
}

func TestAnswer_BlankQuery(t *testing.T) {
	f := newAdviceFixture(t, "ok")
	_, err := f.svc.Answer(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Empty(t, f.generator.prompts)
}

func TestAnswer_ModelUnavailable(t *testing.T) {
	f := newAdviceFixture(t, "")
	f.generator.err = errors.New("upstream 500")

	rec, err := f.svc.Answer(context.Background(), "u1", "bonds")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, 0, f.publisher.count("u1"))
}

func TestAnswer_EmptyModelOutput(t *testing.T) {
	f := newAdviceFixture(t, "")

	rec, err := f.svc.Answer(context.Background(), "u1", "bonds")
	require.NoError(t, err)
	assert.Equal(t, "", rec.Response)
	assert.Equal(t, "", rec.Summary)
}

func TestAnswer_RetrievalFailure(t *testing.T) {
	f := newAdviceFixture(t, "ok")
	f.svc.corpus = NewRAGService(corpus("x"), embedding.NewTFIDF(), &config.RAGConfig{}, zap.NewNop())

	_, err := f.svc.Answer(context.Background(), "u1", "bonds")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestAnswer_PublishesRecommendation(t *testing.T) {
	f := newAdviceFixture(t, "Sure! Bonds are great. REITs offer income.")

	_, err := f.svc.Answer(context.Background(), "u1", "bonds")
	require.NoError(t, err)
	require.Equal(t, 1, f.publisher.count("u1"))

	var event struct {
		Type string `json:"type"`
		Data struct {
			Query          string                `json:"query"`
			Recommendation models.Recommendation `json:"recommendation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(f.publisher.last("u1"), &event))
	assert.Equal(t, EventRecommendation, event.Type)
	assert.Equal(t, "bonds", event.Data.Query)
	assert.Equal(t, "REITs offer income", event.Data.Recommendation.Summary)
}

func TestRecommend(t *testing.T) {
	f := newAdviceFixture(t, "Buy bonds. Hold them.")

	rec, err := f.svc.Recommend(context.Background(), "u1", models.InvestmentShortTerm, models.ExperienceExperienced)
	require.NoError(t, err)
	assert.Equal(t, "Hold them", rec.Summary)

	p := f.generator.lastPrompt()
	assert.Contains(t, p, "Give me the best short-term investment options for a experienced investor.")
	assert.Contains(t, p, "experienced")
	assert.Equal(t, 0, f.sessions.Len())
}

func TestRecommend_InvalidValues(t *testing.T) {
	f := newAdviceFixture(t, "ok")
	_, err := f.svc.Recommend(context.Background(), "u1", "forever", models.ExperienceBeginner)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestRefreshCorpus(t *testing.T) {
	f := newAdviceFixture(t, "ok")
	n, err := f.svc.RefreshCorpus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
