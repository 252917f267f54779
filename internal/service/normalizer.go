package service

import (
	"strings"
	"unicode"

	"fin-advisor/internal/models"
)

// fillerOpeners are matched case-insensitively at the start of a reply.
// Longer phrases come first so "okay" wins over "ok".
var fillerOpeners = []string{
	"great question",
	"of course",
	"certainly",
	"absolutely",
	"here's",
	"here’s",
	"here is",
	"okay",
	"sure",
	"ok",
}

type keywordTag struct {
	keyword string
	labels  []string
	apply   func(r *models.Recommendation, labels []string)
}

// Tagging is a keyword scan only. A missing tag says nothing about the text.
var keywordTags = []keywordTag{
	{
		keyword: "bonds",
		labels:  []string{"Government Bonds", "Corporate Bonds"},
		apply:   func(r *models.Recommendation, l []string) { r.Stability = l },
	},
	{
		keyword: "stocks",
		labels:  []string{"Tech Stocks", "Index Funds"},
		apply:   func(r *models.Recommendation, l []string) { r.HighGrowth = l },
	},
	{
		keyword: "reits",
		labels:  []string{"REITs", "Dividend Stocks"},
		apply:   func(r *models.Recommendation, l []string) { r.PassiveIncome = l },
	},
}

var riskLevels = []struct {
	phrases []string
	level   string
}{
	{[]string{"high risk", "high-risk"}, "High"},
	{[]string{"medium risk", "moderate risk", "medium-risk", "moderate-risk"}, "Medium"},
	{[]string{"low risk", "low-risk"}, "Low"},
}

// Normalize shapes raw model output into a Recommendation. A nil or empty
// input yields an empty recommendation; it never fails.
func Normalize(raw *string) *models.Recommendation {
	if raw == nil {
		return &models.Recommendation{}
	}
	return NormalizeText(*raw)
}

func NormalizeText(raw string) *models.Recommendation {
	text := stripFiller(sanitizeUTF8(raw))
	if text == "" {
		return &models.Recommendation{}
	}

	rec := &models.Recommendation{
		Response: text,
		Summary:  trailingSentence(text),
	}

	lower := strings.ToLower(text)
	for _, tag := range keywordTags {
		if strings.Contains(lower, tag.keyword) {
			tag.apply(rec, append([]string(nil), tag.labels...))
		}
	}
	rec.RiskLevel = riskLevel(lower)

	return rec
}

// maxPreambleWords bounds the lead-in that may sit between an opener's
// sentence and the colon, as in "Sure! Here are my picks: ...".
const maxPreambleWords = 8

// stripFiller removes leading filler openers. A colon after the opener goes
// with everything before it when it ends the opener's sentence or a short
// lead-in right after it.
func stripFiller(text string) string {
	text = strings.TrimSpace(text)
	for i := 0; i < len(fillerOpeners); i++ {
		opener, ok := matchOpener(text)
		if !ok {
			break
		}
		rest := text[len(opener):]
		if colon := preambleColon(rest); colon >= 0 {
			text = strings.TrimSpace(rest[colon+1:])
			continue
		}
		text = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
	}
	return text
}

func matchOpener(text string) (string, bool) {
	for _, opener := range fillerOpeners {
		if len(text) < len(opener) || !strings.EqualFold(text[:len(opener)], opener) {
			continue
		}
		// "ok" must not match "okra"
		if rest := text[len(opener):]; rest != "" {
			r := []rune(rest)[0]
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		return text[:len(opener)], true
	}
	return "", false
}

// preambleColon returns the index of the colon closing the opener's sentence
// or the short sentence after it, or -1.
func preambleColon(rest string) int {
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return -1
	}
	end := sentenceEnd(rest)
	if colon < end {
		return colon
	}
	next := end + 1
	for next < len(rest) && strings.ContainsRune(".!?\n", rune(rest[next])) {
		next++
	}
	if colon < next {
		return -1
	}
	lead := rest[next:colon]
	if strings.ContainsAny(lead, ".!?\n") || len(strings.Fields(lead)) > maxPreambleWords {
		return -1
	}
	return colon
}

func sentenceEnd(s string) int {
	if i := strings.IndexAny(s, ".!?\n"); i >= 0 {
		return i
	}
	return len(s)
}

// trailingSentence returns the last non-empty "."-separated segment, or ""
// when the text holds fewer than two such segments.
func trailingSentence(text string) string {
	var last string
	count := 0
	for _, segment := range strings.Split(text, ".") {
		if s := strings.TrimSpace(segment); s != "" {
			last = s
			count++
		}
	}
	if count < 2 {
		return ""
	}
	return last
}

func riskLevel(lower string) string {
	for _, rl := range riskLevels {
		for _, phrase := range rl.phrases {
			if strings.Contains(lower, phrase) {
				return rl.level
			}
		}
	}
	return ""
}
