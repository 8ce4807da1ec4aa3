package recommend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/libraryai/recommender/internal/domain"
	"github.com/libraryai/recommender/internal/logger"
	"github.com/libraryai/recommender/internal/metrics"
)

// Filter prunes a candidate set down to the books that best match the
// query's intent, using a single model call. It never fails the request:
// any model or parse failure degrades to the distance-ordered top-N.
type Filter struct {
	gen             Generator
	selectN         int
	minSelections   int
	summaryMaxChars int
}

// NewFilter creates a semantic filter selecting up to selectN candidates.
// A model response yielding fewer than minSelections valid indices triggers
// the deterministic fallback.
func NewFilter(gen Generator, selectN, minSelections, summaryMaxChars int) *Filter {
	return &Filter{
		gen:             gen,
		selectN:         selectN,
		minSelections:   minSelections,
		summaryMaxChars: summaryMaxChars,
	}
}

// Filter selects the candidates best matching the query. The returned slice
// preserves the order the model chose them in; on fallback it preserves
// retrieval order.
func (f *Filter) Filter(ctx context.Context, query string, candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	prompt := f.buildPrompt(query, candidates)

	text, err := f.gen.Generate(ctx, prompt, domain.GenerateOptions{MaxTokens: 100})
	if err != nil {
		return f.fallback(ctx, candidates, "filter call failed", err)
	}

	indices := parseSelections(text, len(candidates), f.selectN)

	// Too few valid indices means the response is not trustworthy. A short
	// candidate set lowers the bar accordingly.
	minValid := f.minSelections
	if len(candidates) < minValid {
		minValid = len(candidates)
	}
	if len(indices) < minValid {
		return f.fallback(ctx, candidates, "unusable filter response", fmt.Errorf("parsed %d valid indices from %q", len(indices), text))
	}

	selected := make([]domain.Candidate, 0, len(indices))
	for _, idx := range indices {
		selected = append(selected, candidates[idx-1])
	}
	return selected
}

// buildPrompt enumerates candidates 1-indexed with truncated summaries and
// asks for a comma-separated index list.
func (f *Filter) buildPrompt(query string, candidates []domain.Candidate) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "A reader is searching for books with this request: '%s'.\n", query)
	sb.WriteString("Here are the candidate books:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. Title: '%s', Author: '%s', Genre: '%s', Summary: '%s'\n",
			i+1, c.Title, c.Author, c.Genre, truncate(c.Summary, f.summaryMaxChars))
	}
	fmt.Fprintf(&sb,
		"Choose the %d books that best match the request. If the request excludes something ('I don't want ...'), do not pick books matching the exclusion. "+
			"Answer with only the numbers of your choices separated by commas, for example: 1, 3, 5. No other text.",
		f.selectN)

	return sb.String()
}

func (f *Filter) fallback(ctx context.Context, candidates []domain.Candidate, reason string, err error) []domain.Candidate {
	logger.FromContext(ctx).Warn("semantic filter degraded to top-N by distance",
		zap.String("reason", reason),
		zap.Error(err),
	)
	metrics.FilterFallbacksTotal.Inc()

	n := f.selectN
	if len(candidates) < n {
		n = len(candidates)
	}
	return candidates[:n]
}

// parseSelections extracts 1-based indices from free model text. Runs of
// digits are taken as integer tokens; out-of-range values are discarded,
// duplicates are dropped keeping the first occurrence, and at most maxCount
// indices are returned in order of appearance.
func parseSelections(text string, maxIndex, maxCount int) []int {
	var (
		indices []int
		seen    = make(map[int]bool)
		digits  strings.Builder
	)

	flush := func() {
		if digits.Len() == 0 {
			return
		}
		defer digits.Reset()

		n, err := strconv.Atoi(digits.String())
		if err != nil || n < 1 || n > maxIndex || seen[n] {
			return
		}
		if len(indices) < maxCount {
			seen[n] = true
			indices = append(indices, n)
		}
	}

	for _, r := range text {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return indices
}

// truncate shortens s to at most max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
