// Package ingest accepts metric samples over HTTP and NATS JetStream
// and forwards them to the evaluation pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"polyalert/internal/domain"
)

// SampleSink receives decoded samples from ingest interfaces.
// Params: context and validated sample.
// Returns: processing error.
type SampleSink interface {
	Push(ctx context.Context, sample domain.Sample) error
}

// HTTPHandler decodes JSON samples and forwards them to the sink. The
// endpoint accepts one sample object; the /batch suffix accepts an
// array.
// Params: sink for validated samples, max body limits payload size.
// Returns: HTTP handler for the ingest endpoint.
type HTTPHandler struct {
	sink        SampleSink
	maxBodySize int64
}

// NewHTTPHandler creates the ingest HTTP handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewHTTPHandler(sink SampleSink, maxBodySize int64) *HTTPHandler {
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming sample request.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/push result.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	sample, err := domain.DecodeSample(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.sink.Push(request.Context(), sample); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

// BatchHandler decodes one JSON array of samples per request.
// Params: sink for validated samples, max body limits payload size.
// Returns: HTTP handler for the batch ingest endpoint.
type BatchHandler struct {
	sink        SampleSink
	maxBodySize int64
}

// NewBatchHandler creates the batch ingest HTTP handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewBatchHandler(sink SampleSink, maxBodySize int64) *BatchHandler {
	return &BatchHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming sample batch. The whole batch must
// validate before any sample reaches the sink.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/push result.
func (h *BatchHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()

	samples, err := domain.DecodeSamplesReader(json.NewDecoder(request.Body))
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, sample := range samples {
		if err := h.sink.Push(request.Context(), sample); err != nil {
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	writer.WriteHeader(http.StatusAccepted)
}
