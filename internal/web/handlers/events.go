package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/pose-guard/internal/pipeline"
)

// Events streams engine events as server-sent events until the client disconnects.
// Processed-frame events are skipped unless ?frames=1; they carry no image here.
func (h *GuardHandler) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	withFrames := r.URL.Query().Get("frames") == "1"

	eventCh := h.guard.Subscribe()
	defer h.guard.Unsubscribe(eventCh)

	if st, err := h.guard.Status(r.Context()); err == nil {
		sendSSEEvent(w, flusher, "status", st)
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if event.Type == pipeline.EventFrameProcessed && !withFrames {
				continue
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
