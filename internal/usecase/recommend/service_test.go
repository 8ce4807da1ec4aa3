package recommend

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/libraryai/recommender/internal/domain"
	"github.com/libraryai/recommender/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterModelMetrics()
	os.Exit(m.Run())
}

// mockModel implements domain.ModelService with scripted behavior. The
// first Generate call is the filter; later calls are per-item reasons.
type mockModel struct {
	mu             sync.Mutex
	embedVector    []float32
	embedErr       error
	embedCalls     int
	filterResponse string
	filterErr      error
	reasonErr      error
	generateCalls  int
}

func (m *mockModel) Embed(_ context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	return m.embedVector, m.embedErr
}

func (m *mockModel) Generate(_ context.Context, prompt string, _ domain.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls++

	if strings.Contains(prompt, "candidate books") {
		return m.filterResponse, m.filterErr
	}
	if m.reasonErr != nil {
		return "", m.reasonErr
	}
	return "A generated reason.", nil
}

// mockSearcher returns a fixed candidate list.
type mockSearcher struct {
	candidates []domain.Candidate
	err        error
	calls      int
}

func (m *mockSearcher) TopKByDistance(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
	m.calls++
	return m.candidates, m.err
}

func testConfig() Config {
	return Config{
		TopK:            6,
		SelectN:         3,
		MinSelections:   2,
		SummaryMaxChars: 200,
		ReasonMaxChars:  250,
		ExplainTimeout:  time.Second,
	}
}

func TestRecommend_EndToEnd(t *testing.T) {
	model := &mockModel{
		embedVector:    []float32{0.1, 0.2, 0.3},
		filterResponse: "2, 4, 6",
	}
	searcher := &mockSearcher{candidates: sixCandidates()}
	svc := New(model, searcher, testConfig())

	recs, err := svc.Recommend(context.Background(), "space exploration adventure")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	want := []string{"B", "D", "F"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d recommendations, got %d", len(want), len(recs))
	}
	for i, title := range want {
		if recs[i].Title != title {
			t.Errorf("recs[%d].Title = %q, want %q", i, recs[i].Title, title)
		}
		if strings.TrimSpace(recs[i].Reason) == "" {
			t.Errorf("recs[%d] has empty reason", i)
		}
	}
	// 1 filter call + 3 reason calls.
	if model.generateCalls != 4 {
		t.Errorf("expected 4 generate calls, got %d", model.generateCalls)
	}
}

func TestRecommend_PartialSelectionIsNotFallback(t *testing.T) {
	model := &mockModel{
		embedVector:    []float32{0.1},
		filterResponse: "I think books 2 and 4",
	}
	searcher := &mockSearcher{candidates: sixCandidates()}
	svc := New(model, searcher, testConfig())

	recs, err := svc.Recommend(context.Background(), "space")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(recs) != 2 || recs[0].Title != "B" || recs[1].Title != "D" {
		t.Errorf("expected [B D], got %+v", recs)
	}
}

func TestRecommend_FilterFallbackKeepsDistanceOrder(t *testing.T) {
	model := &mockModel{
		embedVector:    []float32{0.1},
		filterResponse: "7, 9",
	}
	searcher := &mockSearcher{candidates: sixCandidates()}
	svc := New(model, searcher, testConfig())

	recs, err := svc.Recommend(context.Background(), "space")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	want := []string{"A", "B", "C"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d recommendations, got %d", len(want), len(recs))
	}
	for i, title := range want {
		if recs[i].Title != title {
			t.Errorf("recs[%d].Title = %q, want %q", i, recs[i].Title, title)
		}
	}
}

func TestRecommend_ReasonFailuresStillReturnFullList(t *testing.T) {
	model := &mockModel{
		embedVector:    []float32{0.1},
		filterResponse: "1, 2, 3",
		reasonErr:      errors.New("model down"),
	}
	searcher := &mockSearcher{candidates: sixCandidates()}
	svc := New(model, searcher, testConfig())

	recs, err := svc.Recommend(context.Background(), "space")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.Reason != fallbackReason {
			t.Errorf("recs[%d].Reason = %q, want fallback", i, rec.Reason)
		}
	}
}

func TestRecommend_BlankQueryShortCircuits(t *testing.T) {
	model := &mockModel{}
	searcher := &mockSearcher{}
	svc := New(model, searcher, testConfig())

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := svc.Recommend(context.Background(), query)
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("query %q: expected ErrInvalidQuery, got %v", query, err)
		}
	}

	if model.embedCalls != 0 || model.generateCalls != 0 || searcher.calls != 0 {
		t.Errorf("expected zero remote calls, got embed=%d generate=%d search=%d",
			model.embedCalls, model.generateCalls, searcher.calls)
	}
}

func TestRecommend_EmbeddingFailureIsFatal(t *testing.T) {
	model := &mockModel{embedErr: domain.ErrEmbeddingUnavailable}
	searcher := &mockSearcher{candidates: sixCandidates()}
	svc := New(model, searcher, testConfig())

	_, err := svc.Recommend(context.Background(), "space")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if searcher.calls != 0 {
		t.Error("vector search must not run after embedding failure")
	}
}

func TestRecommend_StoreFailureIsFatal(t *testing.T) {
	model := &mockModel{embedVector: []float32{0.1}}
	searcher := &mockSearcher{err: domain.ErrStoreUnavailable}
	svc := New(model, searcher, testConfig())

	_, err := svc.Recommend(context.Background(), "space")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if model.generateCalls != 0 {
		t.Error("no generation calls expected after store failure")
	}
}

func TestRecommend_EmptyStoreYieldsEmptyList(t *testing.T) {
	model := &mockModel{embedVector: []float32{0.1}}
	searcher := &mockSearcher{}
	svc := New(model, searcher, testConfig())

	recs, err := svc.Recommend(context.Background(), "space")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty result, got %+v", recs)
	}
	if model.generateCalls != 0 {
		t.Error("no generation calls expected for empty candidate set")
	}
}
