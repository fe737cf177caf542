package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"polyalert/internal/domain"
)

type captureSink struct {
	mu      sync.Mutex
	samples []domain.Sample
	err     error
}

func (s *captureSink) Push(_ context.Context, sample domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.samples = append(s.samples, sample)
	return nil
}

func TestHTTPHandlerAcceptsValidSample(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	handler := NewHTTPHandler(sink, 1<<20)

	body := `{"dt": 1767225600000, "metric": "error_rate", "value": 7.5, "language": "fr"}`
	request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", recorder.Code)
	}
	if len(sink.samples) != 1 || sink.samples[0].Metric != "error_rate" {
		t.Fatalf("sink samples: %+v", sink.samples)
	}
}

func TestHTTPHandlerRejectsBadInput(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	handler := NewHTTPHandler(sink, 1<<20)

	cases := map[string]string{
		"invalid json":     `{`,
		"missing metric":   `{"dt": 1767225600000, "value": 1, "language": "fr"}`,
		"missing language": `{"dt": 1767225600000, "metric": "error_rate", "value": 1}`,
		"zero timestamp":   `{"dt": 0, "metric": "error_rate", "value": 1, "language": "fr"}`,
	}
	for name, body := range cases {
		request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", name, recorder.Code)
		}
	}
	if len(sink.samples) != 0 {
		t.Fatalf("bad payloads must not reach the sink")
	}
}

func TestHTTPHandlerMethodAndBackpressure(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	handler := NewHTTPHandler(sink, 1<<20)

	request := httptest.NewRequest(http.MethodGet, "/ingest", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", recorder.Code)
	}

	sink.err = errors.New("pipeline saturated")
	body := `{"dt": 1767225600000, "metric": "error_rate", "value": 7.5, "language": "fr"}`
	request = httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("saturated status = %d, want 503", recorder.Code)
	}
}

func TestBatchHandlerValidatesWholeBatch(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	handler := NewBatchHandler(sink, 1<<20)

	good := `[
		{"dt": 1767225600000, "metric": "error_rate", "value": 7.5, "language": "fr"},
		{"dt": 1767225601000, "metric": "error_rate", "value": 8.1, "language": "de"}
	]`
	request := httptest.NewRequest(http.MethodPost, "/ingest/batch", strings.NewReader(good))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", recorder.Code)
	}
	if len(sink.samples) != 2 {
		t.Fatalf("sink samples = %d, want 2", len(sink.samples))
	}

	// One invalid element rejects the whole batch before the sink.
	mixed := `[
		{"dt": 1767225600000, "metric": "error_rate", "value": 7.5, "language": "fr"},
		{"dt": 1767225601000, "metric": "", "value": 8.1, "language": "de"}
	]`
	request = httptest.NewRequest(http.MethodPost, "/ingest/batch", strings.NewReader(mixed))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("mixed batch status = %d, want 400", recorder.Code)
	}
	if len(sink.samples) != 2 {
		t.Fatalf("invalid batch must not reach the sink")
	}
}
