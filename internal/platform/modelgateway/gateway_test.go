package modelgateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func newTestGateway(t *testing.T, endpoints ...string) Gateway {
	t.Helper()
	gw, err := New(testLogger(t), Config{
		Endpoints:      endpoints,
		APIKey:         "test-key",
		ConnectTimeout: time.Second,
		AttemptTimeout: 2 * time.Second,
		EmbeddingDim:   3,
	})
	if err != nil {
		t.Fatalf("init gateway: %v", err)
	}
	return gw
}

const summaryBody = `{"summary":"Cells are the unit of life.","word_count":6,"confidence":0.9,"model":"test-model","language":"en"}`

func TestGatewayFailsOverToNextCandidate(t *testing.T) {
	var primaryHits, secondaryHits atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryHits.Add(1)
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("X-API-Key = %q", got)
		}
		w.Write([]byte(summaryBody))
	}))
	defer secondary.Close()

	gw := newTestGateway(t, primary.URL, secondary.URL)

	result, err := gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "source text", GenerationParams{})
	if err != nil {
		t.Fatalf("GenerateArtifact: %v", err)
	}
	if result.ModelName != "test-model" {
		t.Fatalf("model = %q", result.ModelName)
	}
	if primaryHits.Load() != 1 || secondaryHits.Load() != 1 {
		t.Fatalf("hits primary=%d secondary=%d", primaryHits.Load(), secondaryHits.Load())
	}
}

func TestGatewaySkipsUnreachableCandidate(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(summaryBody))
	}))
	defer backend.Close()

	// 127.0.0.1:1 refuses connections immediately.
	gw := newTestGateway(t, "http://127.0.0.1:1", backend.URL)

	if _, err := gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "text", GenerationParams{}); err != nil {
		t.Fatalf("GenerateArtifact: %v", err)
	}
}

func TestGatewayStopsOnUnauthorized(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad key"}`))
	}))
	defer primary.Close()

	var secondaryHits atomic.Int32
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryHits.Add(1)
		w.Write([]byte(summaryBody))
	}))
	defer secondary.Close()

	gw := newTestGateway(t, primary.URL, secondary.URL)

	_, err := gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "text", GenerationParams{})
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if secondaryHits.Load() != 0 {
		t.Fatalf("secondary was tried after credential rejection")
	}
}

func TestGatewayExhaustionIsUnavailable(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	gw := newTestGateway(t, down.URL, down.URL)

	_, err := gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "text", GenerationParams{})
	if !IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestGatewayUnparsableBodyAdvances(t *testing.T) {
	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	}))
	defer garbled.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(summaryBody))
	}))
	defer healthy.Close()

	gw := newTestGateway(t, garbled.URL, healthy.URL)

	if _, err := gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "text", GenerationParams{}); err != nil {
		t.Fatalf("GenerateArtifact: %v", err)
	}
}

func TestGatewaySchemaViolationIsMalformed(t *testing.T) {
	// Parseable JSON whose content fails the summary schema is a malformed
	// model response, not a reason to try another candidate.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary":"","word_count":0,"model":"m"}`))
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	_, err := gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "text", GenerationParams{})
	if !IsMalformed(err) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func TestGatewayAttemptTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	gw, err := New(testLogger(t), Config{
		Endpoints:      []string{slow.URL},
		APIKey:         "test-key",
		AttemptTimeout: 50 * time.Millisecond,
		EmbeddingDim:   3,
	})
	if err != nil {
		t.Fatalf("init gateway: %v", err)
	}

	start := time.Now()
	_, err = gw.GenerateArtifact(context.Background(), domain.ArtifactSummary, "text", GenerationParams{})
	if !IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not enforced, took %s", time.Since(start))
	}
}

func TestGatewayEmbedChecksDimension(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"x","vector":[0.1,0.2],"dimensions":2,"model":"embedder"}`))
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	_, err := gw.Embed(context.Background(), "some text")
	if !IsMalformed(err) {
		t.Fatalf("err = %v, want malformed on dimension mismatch", err)
	}
}

func TestGatewayEmbed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"x","vector":[0.1,0.2,0.3],"dimensions":3,"model":"embedder"}`))
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	vec, err := gw.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("vector len = %d", len(vec))
	}
}

func TestGatewayQuizQueryParams(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("num_questions"); got != "7" {
			t.Errorf("num_questions = %q", got)
		}
		w.Write([]byte(`{"questions":[{"question":"q","options":["a","b"],"correct_answer":"a"}],"count":1,"model":"m"}`))
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	if _, err := gw.GenerateArtifact(context.Background(), domain.ArtifactQuiz, "text", GenerationParams{NumQuestions: 7}); err != nil {
		t.Fatalf("GenerateArtifact: %v", err)
	}
}
