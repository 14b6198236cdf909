package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/syezain/ragserve/internal/core/ingest"
)

type IngestHandler struct {
	service *ingest.Service
}

func NewIngestHandler(service *ingest.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// UploadResult is the single-object response for non-streaming uploads.
type UploadResult struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// Upload ingests one multipart file. With ?stream=1 the response is
// newline-delimited JSON, one IngestEvent per line, flushed as the pipeline
// progresses; otherwise the events are drained server-side and the terminal
// one decides a single JSON result.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	declared := header.Header.Get("Content-Type")
	events := h.service.Run(r.Context(), header.Filename, declared, file)

	if r.URL.Query().Get("stream") != "" {
		h.streamEvents(w, events)
		return
	}

	// Drain to the terminal event.
	var last ingest.Event
	for ev := range events {
		last = ev
	}

	result := UploadResult{Status: "success", Filename: header.Filename, Message: last.Message}
	code := http.StatusOK
	if last.Status == ingest.StatusError {
		result.Status = "error"
		code = http.StatusInternalServerError
		if last.Class == ingest.ErrorValidation {
			code = http.StatusBadRequest
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(result)
}

func (h *IngestHandler) streamEvents(w http.ResponseWriter, events <-chan ingest.Event) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
