package models

// Document is one corpus entry used as retrieval context.
// ID is the position in the corpus and is only stable until the next refresh.
type Document struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// FallbackDocumentText stands in for the news corpus whenever the feed cannot be used.
const FallbackDocumentText = "Index funds are great for passive income and long-term growth."

// FallbackCorpus returns the single-document corpus used when the news feed fails.
func FallbackCorpus() []Document {
	return []Document{{ID: 0, Text: FallbackDocumentText}}
}

// Texts returns the document texts in corpus order.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}
