package usecase

import "github.com/univera-lab/univera-rag/internal/core/domain"

// normalizeScores rescales a score map into [0,1] via min-max. When every
// score is equal (a single hit included) each output value is 1.0 — that is
// the deliberate policy for a degenerate spread, not an accidental division
// guard. An empty input yields an empty output.
func normalizeScores(scores domain.ScoreMap) domain.ScoreMap {
	out := make(domain.ScoreMap, len(scores))
	if len(scores) == 0 {
		return out
	}

	first := true
	var minScore, maxScore float64
	for _, score := range scores {
		if first {
			minScore, maxScore = score, score
			first = false
			continue
		}
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore == minScore {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	spread := maxScore - minScore
	for id, score := range scores {
		out[id] = (score - minScore) / spread
	}
	return out
}
