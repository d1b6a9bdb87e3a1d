package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPFactory opens engines that talk to a pose estimation sidecar. The
// sidecar accepts a PNG body on POST <URL>/detect and answers with a JSON
// Result.
type HTTPFactory struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPFactory returns a factory for the sidecar at url
func NewHTTPFactory(url string, timeout time.Duration) *HTTPFactory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFactory{
		URL:     strings.TrimRight(url, "/"),
		Timeout: timeout,
		Client:  http.DefaultClient,
	}
}

// Open checks that the sidecar is reachable before handing out an engine
func (f *HTTPFactory) Open(ctx context.Context) (Engine, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("detector URL is not configured")
	}

	probeCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, f.URL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector sidecar is not reachable at '%s': %w", f.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector sidecar health check returned %s", resp.Status)
	}

	return &httpEngine{url: f.URL, timeout: f.Timeout, client: f.client()}, nil
}

func (f *HTTPFactory) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

type httpEngine struct {
	url     string
	timeout time.Duration
	client  *http.Client
	buf     bytes.Buffer
	closed  bool
}

func (e *httpEngine) Detect(ctx context.Context, img image.Image) (Result, error) {
	if e.closed {
		return Result{}, fmt.Errorf("detector engine is closed")
	}

	e.buf.Reset()
	if err := png.Encode(&e.buf, img); err != nil {
		return Result{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/detect", bytes.NewReader(e.buf.Bytes()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("detect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("detect request returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("failed to decode detect response: %w", err)
	}
	if err := Validate(result); err != nil {
		return Result{}, err
	}

	return result, nil
}

func (e *httpEngine) Close() error {
	e.closed = true
	return nil
}
