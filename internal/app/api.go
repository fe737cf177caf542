package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"polyalert/internal/ingest"
	"polyalert/internal/state"
)

// buildHTTPServer assembles the ingest and read-side HTTP surface.
// Params: sample sink feeding the evaluation pipeline.
// Returns: configured server bound to the ingest listen address.
func (s *Service) buildHTTPServer(sink ingest.SampleSink) *http.Server {
	httpCfg := s.cfg.Ingest.HTTP
	mux := http.NewServeMux()

	mux.HandleFunc(httpCfg.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(httpCfg.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writer.WriteHeader(http.StatusOK)
	})

	mux.Handle(httpCfg.IngestPath, ingest.NewHTTPHandler(sink, httpCfg.MaxBodyBytes))
	mux.Handle(httpCfg.IngestPath+"/batch", ingest.NewBatchHandler(sink, httpCfg.MaxBodyBytes))

	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/alerts/active", s.handleActiveAlerts)
	mux.HandleFunc("/alerts/history", s.handleHistory)
	mux.HandleFunc("/alerts/ack", s.handleAcknowledge)
	mux.HandleFunc("/correlations", s.handleCorrelations)

	return &http.Server{
		Addr:    httpCfg.Listen,
		Handler: mux,
	}
}

func (s *Service) handleStats(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, s.manager.Stats())
}

func (s *Service) handleActiveAlerts(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, s.manager.ActiveAlerts())
}

func (s *Service) handleHistory(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := request.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(writer, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	writeJSON(writer, s.manager.History(limit))
}

func (s *Service) handleCorrelations(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, s.manager.Correlations())
}

// acknowledgeRequest is the POST /alerts/ack payload.
type acknowledgeRequest struct {
	ID string `json:"id"`
	By string `json:"by"`
}

func (s *Service) handleAcknowledge(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload acknowledgeRequest
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(writer, "invalid json body", http.StatusBadRequest)
		return
	}
	if payload.ID == "" || payload.By == "" {
		http.Error(writer, "id and by are required", http.StatusBadRequest)
		return
	}

	alert, err := s.manager.Acknowledge(payload.ID, payload.By)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			http.Error(writer, "alert not found", http.StatusNotFound)
			return
		}
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(writer, alert)
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(value)
}
