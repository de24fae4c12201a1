package generators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"ether-stories/internal/config"
	"ether-stories/internal/logging"
)

func TestIllustrate_NoAPIKeySkips(t *testing.T) {
	painter := NewPainterClient(config.PainterConfig{}, nil, logging.NewForTest())

	path, err := painter.Illustrate(context.Background(), "a garden", 1)
	if err != nil {
		t.Fatalf("Illustrate() error = %v", err)
	}
	if path != "" {
		t.Errorf("Illustrate() path = %q, want empty when no API key is set", path)
	}
}

func TestIllustrate_GeneratesAndDownloads(t *testing.T) {
	var gotReq textToImageRequest
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/v6/images/text2img", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(textToImageResponse{
			Status: "success",
			Output: []string{server.URL + "/artifacts/img.png"},
		})
	})
	mux.HandleFunc("/artifacts/img.png", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "png-bytes")
	})

	outDir := t.TempDir()
	painter := NewPainterClient(config.PainterConfig{
		BaseURL:   server.URL + "/v6/images/text2img",
		APIKey:    "k",
		Model:     "test-model",
		OutputDir: outDir,
		Width:     512,
		Height:    512,
	}, nil, logging.NewForTest())

	path, err := painter.Illustrate(context.Background(), "a garden at dusk", 3)
	if err != nil {
		t.Fatalf("Illustrate() error = %v", err)
	}

	if gotReq.Prompt != "a garden at dusk" || gotReq.ModelID != "test-model" || gotReq.Key != "k" {
		t.Errorf("request = %+v, want prompt, model and key carried through", gotReq)
	}
	if !strings.Contains(path, "chapter_3_") {
		t.Errorf("path = %q, want chapter_3_ prefix", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("artifact = %q, want downloaded bytes", data)
	}
}

func TestIllustrate_APIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textToImageResponse{Status: "error", Message: "invalid key"})
	}))
	defer server.Close()

	painter := NewPainterClient(config.PainterConfig{
		BaseURL:   server.URL,
		APIKey:    "k",
		OutputDir: t.TempDir(),
	}, nil, logging.NewForTest())

	if _, err := painter.Illustrate(context.Background(), "a garden", 1); err == nil {
		t.Fatal("Illustrate() error = nil, want API failure surfaced")
	} else if !strings.Contains(err.Error(), "invalid key") {
		t.Errorf("error = %v, want API message included", err)
	}
}

func TestIllustrate_CacheHitSkipsAPI(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	cache := NewIllustrationCache(dir)
	if err := cache.Initialize(); err != nil {
		t.Fatal(err)
	}
	img := writeImage(t, dir, "chapter_1.png")
	cache.Put("a garden at dusk", img)

	painter := NewPainterClient(config.PainterConfig{
		BaseURL:   server.URL,
		APIKey:    "k",
		OutputDir: dir,
	}, cache, logging.NewForTest())

	path, err := painter.Illustrate(context.Background(), "a garden at dusk", 1)
	if err != nil {
		t.Fatalf("Illustrate() error = %v", err)
	}
	if path != img {
		t.Errorf("path = %q, want cached %q", path, img)
	}
	if calls != 0 {
		t.Errorf("API called %d times on cache hit, want 0", calls)
	}
}
