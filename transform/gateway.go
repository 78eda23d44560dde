package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type (
	// EditParams drive a prompt-guided edit of an existing image.
	EditParams struct {
		ImageURL string  `json:"imageUrl"`
		Prompt   string  `json:"prompt"`
		Model    string  `json:"model,omitempty"`
		Strength float64 `json:"strength"`
	}

	// KnockoutParams remove a solid background color within a tolerance.
	KnockoutParams struct {
		ImageURL        string `json:"imageUrl"`
		BackgroundColor string `json:"backgroundColor"`
		Tolerance       int    `json:"tolerance"`
	}

	// UpscaleParams enlarge an image. Mode and Factor are provider hints and
	// are omitted from the request when the caller did not set them.
	UpscaleParams struct {
		ImageURL     string `json:"imageUrl"`
		OutputFormat string `json:"outputFormat"`
		Mode         string `json:"upscaleMode,omitempty"`
		Factor       int    `json:"upscaleFactor,omitempty"`
	}

	// MockupParams render the artwork onto a garment preview.
	MockupParams struct {
		ImageURL    string `json:"imageUrl"`
		AspectRatio string `json:"aspectRatio"`
	}

	// Gateway is the remote image-transform provider: one operation per kind,
	// source reference in, new asset reference out. It is stateless, performs
	// no retries and no caching; every call can be seconds-slow and can fail
	// independent of input validity.
	Gateway interface {
		Edit(ctx context.Context, p EditParams) (string, error)
		RemoveBackground(ctx context.Context, imageURL string) (string, error)
		KnockoutColor(ctx context.Context, p KnockoutParams) (string, error)
		Upscale(ctx context.Context, p UpscaleParams) (string, error)
		PreparePrint(ctx context.Context, imageURL string) (string, error)
		Mockup(ctx context.Context, p MockupParams) (string, error)
		CreateStyle(ctx context.Context, imageURLs []string) (string, error)
	}
)

// Client calls the transform provider's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClientFromEnv reads TRANSFORM_BASE_URL and TRANSFORM_API_KEY. Transforms
// run for a long time on the provider side, hence the generous client timeout.
func NewClientFromEnv() *Client {
	baseURL := os.Getenv("TRANSFORM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.transform.printloom.io"
	}
	apiKey := os.Getenv("TRANSFORM_API_KEY")
	if apiKey == "" {
		logrus.Warn("TRANSFORM_API_KEY environment variable not set. Image transforms will not work.")
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type transformResponse struct {
	ImageURL string `json:"imageUrl"`
}

type imageRequest struct {
	ImageURL string `json:"imageUrl"`
}

type styleRequest struct {
	ImageURLs []string `json:"imageUrls"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transform request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transform %s returned %s: %s", path, resp.Status, msg)
	}

	var out transformResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transform %s returned unreadable body: %w", path, err)
	}
	if out.ImageURL == "" {
		return "", fmt.Errorf("transform %s returned no image url", path)
	}
	return out.ImageURL, nil
}

func (c *Client) Edit(ctx context.Context, p EditParams) (string, error) {
	return c.post(ctx, "/v1/images/edit", p)
}

func (c *Client) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	return c.post(ctx, "/v1/images/remove-background", imageRequest{ImageURL: imageURL})
}

func (c *Client) KnockoutColor(ctx context.Context, p KnockoutParams) (string, error) {
	return c.post(ctx, "/v1/images/knockout-color", p)
}

func (c *Client) Upscale(ctx context.Context, p UpscaleParams) (string, error) {
	return c.post(ctx, "/v1/images/upscale", p)
}

func (c *Client) PreparePrint(ctx context.Context, imageURL string) (string, error) {
	return c.post(ctx, "/v1/images/prepare-print", imageRequest{ImageURL: imageURL})
}

func (c *Client) Mockup(ctx context.Context, p MockupParams) (string, error) {
	return c.post(ctx, "/v1/images/mockup", p)
}

func (c *Client) CreateStyle(ctx context.Context, imageURLs []string) (string, error) {
	return c.post(ctx, "/v1/styles", styleRequest{ImageURLs: imageURLs})
}
