package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultEmbeddingURL = "http://localhost:8000"

// FaceClient is a Matcher backed by a face embedding server that exposes
// POST /embed/face (InsightFace-style multipart API).
type FaceClient struct {
	baseURL string
	dim     int
	metric  Metric
	client  *http.Client
}

// NewFaceClient creates a client for the embedding server at baseURL.
func NewFaceClient(baseURL string, dim int, metric Metric) *FaceClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if dim <= 0 {
		dim = DefaultDescriptorDim
	}
	if metric == "" {
		metric = MetricEuclidean
	}
	return &FaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		metric:  metric,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// DetectAndDescribe sends frame to the embedding server and returns the
// descriptor of the most confidently detected face.
func (c *FaceClient) DetectAndDescribe(ctx context.Context, frame []byte) (Descriptor, error) {
	if len(frame) == 0 {
		return nil, ErrNoFaceDetected
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", frame)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	best := resp.Faces[0]
	for _, f := range resp.Faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	return NewDescriptor(best.Embedding, c.dim)
}

// Compare returns the configured metric distance between a and b.
func (c *FaceClient) Compare(a, b Descriptor) (float64, error) {
	return c.metric.Distance(a, b)
}

// postMultipartImage posts imageData as the "file" form field with a MIME
// type detected from its magic bytes.
func (c *FaceClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
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

// DetectMIMEType detects the image MIME type from magic bytes.
func DetectMIMEType(data []byte) string {
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
