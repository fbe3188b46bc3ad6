package handlers

import (
	"context"
	"errors"
	"image"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/pipeline"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

// Guard is the pipeline surface the HTTP handlers drive. *pipeline.Service implements it.
type Guard interface {
	Submit(frame image.Image) bool
	SubmitCapture(frame image.Image) bool
	RequestCapture()
	LatestFrame() *image.RGBA
	Stats() pipeline.Stats

	Status(ctx context.Context) (pipeline.Status, error)
	SetAlertMode(ctx context.Context, on bool) error
	SetProMode(ctx context.Context, on bool) error
	SetFugitive(ctx context.Context, name string, img image.Image) error
	ClearFugitive(ctx context.Context) error
	StartOnboarding(ctx context.Context, name string) error
	ReloadTargets(ctx context.Context) (int, error)
	SelectTargets(ctx context.Context, names []string) ([]string, error)

	Subscribe() chan pipeline.Event
	Unsubscribe(ch chan pipeline.Event)
}

// GuardHandler serves the control and frame ingest endpoints.
type GuardHandler struct {
	guard       Guard
	profilesDir string
	logger      *zap.Logger
}

// NewGuardHandler creates a new guard handler.
func NewGuardHandler(guard Guard, profilesDir string, logger *zap.Logger) *GuardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardHandler{guard: guard, profilesDir: profilesDir, logger: logger}
}

// statusResponse is the body of GET /status.
type statusResponse struct {
	pipeline.Status
	Stats pipeline.Stats `json:"stats"`
}

// Status returns the engine state and frame counters.
func (h *GuardHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.guard.Status(r.Context())
	if err != nil {
		h.respondGuardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: st, Stats: h.guard.Stats()})
}

// SubmitFrame accepts a JPEG, PNG or BMP frame. With ?capture=1 the frame is also
// used for the next onboarding capture. A full inbox answers 503.
func (h *GuardHandler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	img, err := fingerprint.DecodeImage(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	}

	submit := h.guard.Submit
	if r.URL.Query().Get("capture") == "1" {
		submit = h.guard.SubmitCapture
	}
	if !submit(img) {
		respondError(w, http.StatusServiceUnavailable, "frame dropped, pipeline busy")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// LatestFrame returns the most recent annotated frame as JPEG.
func (h *GuardHandler) LatestFrame(w http.ResponseWriter, r *http.Request) {
	frame := h.guard.LatestFrame()
	if frame == nil {
		respondError(w, http.StatusNotFound, "no frame processed yet")
		return
	}
	data, err := fingerprint.EncodeJPEG(frame, constants.SnapshotJPEGQuality)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode frame")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// modesRequest toggles modes; absent fields are left unchanged.
type modesRequest struct {
	Alert *bool `json:"alert"`
	Pro   *bool `json:"pro"`
}

// SetModes toggles alert and pro mode.
func (h *GuardHandler) SetModes(w http.ResponseWriter, r *http.Request) {
	var req modesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Alert != nil {
		if err := h.guard.SetAlertMode(r.Context(), *req.Alert); err != nil {
			h.respondGuardError(w, err)
			return
		}
	}
	if req.Pro != nil {
		if err := h.guard.SetProMode(r.Context(), *req.Pro); err != nil {
			h.respondGuardError(w, err)
			return
		}
	}
	h.Status(w, r)
}

// SetFugitive reads a multipart form with "name" and "image" fields.
func (h *GuardHandler) SetFugitive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	img, err := fingerprint.DecodeImage(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	}
	if err := h.guard.SetFugitive(r.Context(), name, img); err != nil {
		h.respondGuardError(w, err)
		return
	}
	h.logger.Info("fugitive set", zap.String("name", sanitizeForLog(name)))
	respondJSON(w, http.StatusOK, map[string]string{"fugitive": name})
}

// ClearFugitive stops the fugitive watch.
func (h *GuardHandler) ClearFugitive(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.ClearFugitive(r.Context()); err != nil {
		h.respondGuardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type onboardingRequest struct {
	Name string `json:"name"`
}

// StartOnboarding begins enrolling a new target.
func (h *GuardHandler) StartOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := h.guard.StartOnboarding(r.Context(), req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"name": req.Name, "step": 0})
}

// CaptureOnboarding marks the next delivered frame as the onboarding capture.
// The outcome arrives as an onboarding event on the event stream.
func (h *GuardHandler) CaptureOnboarding(w http.ResponseWriter, r *http.Request) {
	h.guard.RequestCapture()
	respondJSON(w, http.StatusAccepted, map[string]bool{"requested": true})
}

// ReloadTargets rebuilds the roster from the profile directory.
func (h *GuardHandler) ReloadTargets(w http.ResponseWriter, r *http.Request) {
	n, err := h.guard.ReloadTargets(r.Context())
	if err != nil {
		h.respondGuardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"targets": n})
}

type selectRequest struct {
	Names []string `json:"names"`
}

// SelectTargets restricts tracking to the given names; an empty list selects all.
func (h *GuardHandler) SelectTargets(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	unknown, err := h.guard.SelectTargets(r.Context(), req.Names)
	if err != nil {
		h.respondGuardError(w, err)
		return
	}
	if unknown == nil {
		unknown = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"unknown": unknown})
}

// RemoveTarget deletes a target's profile files and reloads the roster.
func (h *GuardHandler) RemoveTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	removed, err := registry.RemoveProfile(h.profilesDir, name)
	if errors.Is(err, registry.ErrProfileNotFound) {
		respondError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		h.logger.Error("removing profile failed", zap.String("name", sanitizeForLog(name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to remove profile")
		return
	}

	n, err := h.guard.ReloadTargets(r.Context())
	if err != nil {
		h.respondGuardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": removed, "targets": n})
}

// respondGuardError maps pipeline errors to HTTP statuses.
func (h *GuardHandler) respondGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotInitialized):
		respondError(w, http.StatusServiceUnavailable, "face service not ready")
	case errors.Is(err, registry.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, "no face found in image")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		h.logger.Error("guard command failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
