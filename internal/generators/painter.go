package generators

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"ether-stories/internal/config"
)

const defaultPainterModel = "nano-banana-t2i"

// PainterClient generates chapter illustrations through a Modelslab-style
// text-to-image HTTP API and writes the downloaded artifact under the
// configured output directory.
type PainterClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	outputDir  string
	width      int
	height     int
	cache      *IllustrationCache
	logger     *slog.Logger
}

// textToImageRequest is the generation payload.
type textToImageRequest struct {
	Key     string `json:"key"`
	Prompt  string `json:"prompt"`
	ModelID string `json:"model_id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Samples int    `json:"samples"`
}

// textToImageResponse is the generation result. Output holds artifact URLs.
type textToImageResponse struct {
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Message string   `json:"message"`
}

// NewPainterClient creates a painter from configuration. cache may be nil.
func NewPainterClient(cfg config.PainterConfig, cache *IllustrationCache, logger *slog.Logger) *PainterClient {
	model := cfg.Model
	if model == "" {
		model = defaultPainterModel
	}
	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PainterClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		outputDir:  cfg.OutputDir,
		width:      cfg.Width,
		height:     cfg.Height,
		cache:      cache,
		logger:     logger,
	}
}

// Illustrate generates an image for the prompt and returns the path it was
// saved to. Without an API key generation is skipped and the path stays
// empty, matching an unconfigured deployment.
func (p *PainterClient) Illustrate(ctx context.Context, prompt string, chapterNumber int) (string, error) {
	if p.apiKey == "" {
		p.logger.Warn("no image API key configured, skipping illustration", "chapter", chapterNumber)
		return "", nil
	}

	if p.cache != nil {
		if path, ok := p.cache.Get(prompt); ok {
			p.logger.Info("illustration served from cache", "chapter", chapterNumber, "path", path)
			return path, nil
		}
	}

	imageURL, err := p.requestImage(ctx, prompt)
	if err != nil {
		return "", err
	}

	path, err := p.download(ctx, imageURL, chapterNumber)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		p.cache.Put(prompt, path)
	}
	return path, nil
}

func (p *PainterClient) requestImage(ctx context.Context, prompt string) (string, error) {
	payload := textToImageRequest{
		Key:     p.apiKey,
		Prompt:  prompt,
		ModelID: p.model,
		Width:   p.width,
		Height:  p.height,
		Samples: 1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image API HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed textToImageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal image response: %w", err)
	}
	if len(parsed.Output) == 0 || parsed.Output[0] == "" {
		if parsed.Message != "" {
			return "", fmt.Errorf("image API returned no output: %s", parsed.Message)
		}
		return "", fmt.Errorf("image API returned no output (status %q)", parsed.Status)
	}
	return parsed.Output[0], nil
}

func (p *PainterClient) download(ctx context.Context, imageURL string, chapterNumber int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	path := filepath.Join(p.outputDir, fmt.Sprintf("chapter_%d_%s.png", chapterNumber, hex.EncodeToString(suffix)))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return path, nil
}
