package fingerprint

import (
	"context"
	"errors"
	"image"

	"github.com/kozaktomas/pose-guard/internal/facematch"
)

var (
	// ErrEmptyEmbedding is returned when the face service answers without a vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
	// ErrEmptyRegion is returned when a face box lies outside the image.
	ErrEmptyRegion = errors.New("face region is empty")
)

// FaceService finds faces in a frame and turns a face region into an embedding.
type FaceService interface {
	Detect(ctx context.Context, img image.Image) ([]facematch.Box, error)
	Embed(ctx context.Context, img image.Image, box facematch.Box) ([]float32, error)
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding,omitempty"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face detection endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// embeddingResponse represents the response from the chip embedding endpoint
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}
