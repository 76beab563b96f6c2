// Package match compares a live template against a user's stored templates.
package match

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/sdk"
)

// MaxRawScore is the SDK's perfect-match score.
const MaxRawScore = 20000

// ErrNoCandidates is returned when MatchAgainst is called with nothing to
// compare. Callers enroll instead of verifying in that case.
var ErrNoCandidates = errors.New("match: no stored templates to compare")

// Matcher compares two templates. sdk.Binding satisfies it.
type Matcher interface {
	MatchTemplates(stored, live []byte) (int, sdk.Code)
}

// Candidate is a stored template.
type Candidate struct {
	ID       string
	Template []byte
}

// Result is the best comparison.
type Result struct {
	RawScore int
	Percent  int
	// Index and ID identify the winning candidate.
	Index int
	ID    string
}

// Percent maps a raw SDK score onto 0..100, rounding half away from zero.
// Scores outside 0..MaxRawScore are clamped.
func Percent(raw int) int {
	raw = min(max(raw, 0), MaxRawScore)
	return int(math.Round(float64(raw) * 100 / MaxRawScore))
}

// MatchAgainst compares live with every candidate and returns the strictly
// highest percent; ties keep the first. A failed comparison aborts.
func MatchAgainst(ctx context.Context, m Matcher, candidates []Candidate, live []byte, logger *slog.Logger) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrNoCandidates
	}
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "match"))

	var best Result
	for i, c := range candidates {
		raw, code := m.MatchTemplates(c.Template, live)
		if code != sdk.Success {
			return Result{}, device.NewError(device.KindComparisonFailed, "match", code, nil)
		}
		pct := Percent(raw)
		log.Debug("template compared",
			logging.String("template_id", c.ID),
			logging.Int("score", raw),
			logging.Int("percent", pct),
		)
		if i == 0 || pct > best.Percent {
			best = Result{RawScore: raw, Percent: pct, Index: i, ID: c.ID}
		}
	}
	return best, nil
}
