package embedding

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// TFIDF is a local vectorizer. It must be fitted on a corpus before it can embed.
type TFIDF struct {
	stopwords map[string]struct{}
}

func NewTFIDF() *TFIDF {
	return &TFIDF{stopwords: defaultStopwords()}
}

// Fit builds the vocabulary and smoothed IDF weights from corpus.
func (t *TFIDF) Fit(corpus []string) (Embedder, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text, t.stopwords) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	return &fittedTFIDF{vocab: vocab, idf: idf, stopwords: t.stopwords}, nil
}

// Embed on an unfitted TFIDF fits on the given texts first.
func (t *TFIDF) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	fitted, err := t.Fit(texts)
	if err != nil {
		return nil, err
	}
	return fitted.Embed(ctx, texts)
}

type fittedTFIDF struct {
	vocab     map[string]int
	idf       []float64
	stopwords map[string]struct{}
}

func (f *fittedTFIDF) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.embedOne(text)
	}
	return out, nil
}

// Dimension is the vocabulary size; a corpus without tokens yields zero-length
// vectors, which compare with similarity 0 against everything.
func (f *fittedTFIDF) Dimension() int { return len(f.idf) }

func (f *fittedTFIDF) embedOne(text string) []float32 {
	vec := make([]float64, len(f.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokenize(text, f.stopwords) {
		if idx, ok := f.vocab[tok]; ok {
			tf[idx]++
			total++
		}
	}

	out := make([]float32, len(vec))
	if total == 0 {
		return out
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * f.idf[idx]
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}

func tokenize(text string, stopwords map[string]struct{}) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "out", "off", "same", "too", "very", "can",
		"will", "just", "should", "now", "what", "do", "does", "i", "me", "my", "we", "our", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
