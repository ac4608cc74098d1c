package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

// Okapi BM25 parameters the corpus retrieval quality was tuned against.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Index is an immutable BM25 ranking structure built once over the
// tokenized corpus. It is read-only after Build and safe for concurrent
// searches.
type Index struct {
	ids      []string
	termFreq []map[string]int
	docLen   []int
	avgLen   float64
}

// Build tokenizes every document and precomputes per-document term
// frequencies. Building over zero documents yields an index whose Search
// always returns an empty map.
func Build(docs []domain.Document) *Index {
	ix := &Index{}

	totalLen := 0
	for _, doc := range docs {
		tokens := Tokenize(doc.Content)

		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}

		ix.ids = append(ix.ids, doc.ID)
		ix.termFreq = append(ix.termFreq, freq)
		ix.docLen = append(ix.docLen, len(tokens))
		totalLen += len(tokens)
	}
	if len(ix.ids) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(ix.ids))
	}
	return ix
}

// Len reports the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.ids)
}

// Search tokenizes the query with the index's own normalization and returns
// BM25 scores for up to topK documents, restricted to strictly positive
// scores. Zero-score documents are excluded rather than ranked last. An
// empty index or a query whose terms are all filtered out yields an empty
// map.
func (ix *Index) Search(query string, topK int) domain.ScoreMap {
	out := make(domain.ScoreMap)
	if len(ix.ids) == 0 || topK <= 0 {
		return out
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return out
	}

	n := float64(len(ix.ids))
	scores := make([]float64, len(ix.ids))
	freqs := make([]float64, len(ix.ids))
	for _, term := range terms {
		df := 0
		for i := range ix.ids {
			freqs[i] = ix.matchFreq(i, term)
			if freqs[i] > 0 {
				df++
			}
		}
		if df == 0 {
			continue
		}

		// Smoothed idf stays positive even for terms present in every
		// document, so a match never pushes a score below zero.
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i := range ix.ids {
			if freqs[i] == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*float64(ix.docLen[i])/ix.avgLen)
			scores[i] += idf * freqs[i] * (bm25K1 + 1) / (freqs[i] + norm)
		}
	}

	order := make([]int, len(ix.ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	for _, i := range order {
		if len(out) == topK {
			break
		}
		if scores[i] > 0 {
			out[ix.ids[i]] = scores[i]
		}
	}
	return out
}

// matchFreq counts term occurrences in one document. Korean is
// agglutinative: a bare noun query has to match its particle- and
// ending-inflected occurrences, so a Hangul term also matches every
// document token it prefixes.
func (ix *Index) matchFreq(doc int, term string) float64 {
	freq := ix.termFreq[doc]
	total := float64(freq[term])
	if !containsHangul(term) {
		return total
	}
	for token, count := range freq {
		if token != term && strings.HasPrefix(token, term) {
			total += float64(count)
		}
	}
	return total
}

func containsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
