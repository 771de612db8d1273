package embedclient

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

	"go.uber.org/zap"

	"github.com/example/face-attend/internal/faceencoder"
	"github.com/example/face-attend/internal/logging"
)

const defaultBaseURL = "http://localhost:8000"

// Client computes face embeddings by calling the embedding server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client for the embedding server at baseURL.
func New(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  logger.Named("embedclient"),
	}
}

// faceDetection is a single detected face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the body returned by the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Encode posts the image to the embedding server and resolves the detected
// faces to a single encoding according to policy.
func (c *Client) Encode(ctx context.Context, imageBytes []byte, policy faceencoder.Policy) (faceencoder.Encoding, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageBytes)
	if err != nil {
		return nil, logging.NewOperationError("embedclient.encode", "", err)
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, logging.NewOperationError("embedclient.encode", "", fmt.Errorf("failed to parse response: %w", err))
	}

	if resp.FacesCount == 0 || len(resp.Faces) == 0 {
		return nil, faceencoder.ErrNoFace
	}

	switch policy {
	case faceencoder.SingleFace:
		if len(resp.Faces) > 1 {
			return nil, faceencoder.ErrMultipleFaces
		}
		return validEncoding(resp.Faces[0])
	case faceencoder.MostProminent:
		best := resp.Faces[0]
		for _, face := range resp.Faces[1:] {
			if face.DetScore > best.DetScore {
				best = face
			}
		}
		if len(resp.Faces) > 1 {
			c.logger.Debug("multiple faces in probe, using most prominent",
				zap.Int("faces", len(resp.Faces)),
				zap.Float64("det_score", best.DetScore))
		}
		return validEncoding(best)
	default:
		return nil, fmt.Errorf("unknown face policy %d", policy)
	}
}

func validEncoding(face faceDetection) (faceencoder.Encoding, error) {
	if len(face.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding for face %d", face.FaceIndex)
	}
	return faceencoder.Encoding(face.Embedding), nil
}

// postMultipartImage constructs a multipart form with the image data and posts
// it to the given endpoint. The part carries an explicit Content-Type based on
// magic byte detection so the server can decode without guessing.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
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

	resp, err := c.http.Do(req)
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

// DetectMIMEType detects the MIME type from image magic bytes.
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
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
