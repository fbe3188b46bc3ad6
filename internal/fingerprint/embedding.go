package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/facematch"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	detectEndpoint      = "/embed/face"
	chipEndpoint        = "/embed/chip"
	healthEndpoint      = "/health"
)

// Client talks to the face embedding server. It implements FaceService.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new face service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces sends the encoded image to the detector and returns the raw response.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, detectEndpoint, imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Detect returns the face boxes found in img, clamped to the image bounds.
// Boxes that fall entirely outside the image are dropped.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]facematch.Box, error) {
	data, err := EncodeJPEG(img, constants.SnapshotJPEGQuality)
	if err != nil {
		return nil, err
	}

	resp, err := c.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	boxes := make([]facematch.Box, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		box := facematch.BoxFromCorners(face.BBox).Clamp(img.Bounds())
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// Embed crops a face chip around box and computes its embedding.
func (c *Client) Embed(ctx context.Context, img image.Image, box facematch.Box) ([]float32, error) {
	chip, err := CropChip(img, box)
	if err != nil {
		return nil, err
	}
	data, err := EncodeJPEG(chip, constants.SnapshotJPEGQuality)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, chipEndpoint, data)
	if err != nil {
		return nil, fmt.Errorf("embedding face: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return embResp.Embedding, nil
}

// Ping checks that the embedding server is up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
