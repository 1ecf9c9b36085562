package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/studystreak/studystreak-backend/internal/platform/logger"
	"github.com/studystreak/studystreak-backend/internal/platform/modelgateway"
)

// Distractor selection thresholds on the cosine similarity scale.
// Candidates above the ceiling read as paraphrases of the correct answer
// and would make the question unanswerable; the preferred band is close
// enough to be plausible but far enough to stay clearly wrong.
const (
	DistractorSimilarityCeiling = 0.85
	DistractorBandLow           = 0.40
	DistractorBandHigh          = 0.70
	DefaultDistractorCount      = 3
)

// DistractorSelector picks wrong-but-plausible quiz options from a pool of
// candidate phrases using embedding similarity to the correct answer.
type DistractorSelector struct {
	log     *logger.Logger
	gateway modelgateway.Gateway
}

func NewDistractorSelector(baseLog *logger.Logger, gw modelgateway.Gateway) *DistractorSelector {
	return &DistractorSelector{
		log:     baseLog.With("service", "DistractorSelector"),
		gateway: gw,
	}
}

type scoredCandidate struct {
	text       string
	similarity float64
	order      int
}

// Select returns up to n distractors for the correct answer, drawn from
// candidates. Fewer than n may come back when the pool is thin; the caller
// decides whether that is acceptable.
func (s *DistractorSelector) Select(ctx context.Context, correctAnswer string, candidates []string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultDistractorCount
	}
	correctAnswer = strings.TrimSpace(correctAnswer)
	if correctAnswer == "" {
		return nil, fmt.Errorf("correct answer is empty")
	}

	correctVec, err := s.gateway.Embed(ctx, correctAnswer)
	if err != nil {
		return nil, fmt.Errorf("embed correct answer: %w", err)
	}

	seen := map[string]bool{strings.ToLower(correctAnswer): true}
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, raw := range candidates {
		candidate := strings.TrimSpace(raw)
		if candidate == "" || seen[strings.ToLower(candidate)] {
			continue
		}
		seen[strings.ToLower(candidate)] = true

		vec, err := s.gateway.Embed(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("embed candidate: %w", err)
		}
		scored = append(scored, scoredCandidate{
			text:       candidate,
			similarity: cosineSimilarity(correctVec, vec),
			order:      len(scored),
		})
	}

	picked := pickDistractors(scored, n)
	if len(picked) < n {
		s.log.Warn(
			"distractor pool thinner than requested",
			"requested", n,
			"selected", len(picked),
			"candidates", len(scored),
		)
	}
	return picked, nil
}

// pickDistractors applies the similarity policy to already-scored
// candidates. Anything above the ceiling is rejected outright. Candidates
// inside the preferred band win first, most similar first; if the band
// cannot fill the quota the remaining eligible candidates top it up in the
// same order. Ties keep the original candidate order.
func pickDistractors(scored []scoredCandidate, n int) []string {
	var band, rest []scoredCandidate
	for _, c := range scored {
		switch {
		case c.similarity > DistractorSimilarityCeiling:
			continue
		case c.similarity >= DistractorBandLow && c.similarity <= DistractorBandHigh:
			band = append(band, c)
		default:
			rest = append(rest, c)
		}
	}

	bySimilarity := func(list []scoredCandidate) func(i, j int) bool {
		return func(i, j int) bool {
			if list[i].similarity != list[j].similarity {
				return list[i].similarity > list[j].similarity
			}
			return list[i].order < list[j].order
		}
	}
	sort.SliceStable(band, bySimilarity(band))
	sort.SliceStable(rest, bySimilarity(rest))

	out := make([]string, 0, n)
	for _, c := range band {
		if len(out) == n {
			return out
		}
		out = append(out, c.text)
	}
	for _, c := range rest {
		if len(out) == n {
			return out
		}
		out = append(out, c.text)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sentenceCandidates splits source text into short fragments usable as a
// distractor pool. Splitting is deliberately crude; the similarity policy
// does the real filtering.
func sentenceCandidates(text string, limit int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})
	out := make([]string, 0, limit)
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if len(f) < 8 || len(f) > 160 {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out
}
