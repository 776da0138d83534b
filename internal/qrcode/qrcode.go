// Package qrcode renders ticket links into PNG QR codes.
package qrcode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	goqr "github.com/skip2/go-qrcode"
)

const (
	// DefaultRemoteURL is the QR rendering API; the text is appended URL-encoded.
	DefaultRemoteURL = "https://api.qrserver.com/v1/create-qr-code/?size=400x400&data="
	// DefaultTimeout bounds one remote render.
	DefaultTimeout = 10 * time.Second
	// Size is the edge length in pixels of locally rendered codes.
	Size = 400

	maxImageBytes = 2 * 1024 * 1024
)

// Renderer turns text into PNG image bytes.
type Renderer interface {
	Render(ctx context.Context, text string) ([]byte, error)
}

// Remote calls an HTTP QR rendering API.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a remote renderer. Every call is bounded by timeout.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if baseURL == "" {
		baseURL = DefaultRemoteURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// Render fetches the QR image. Any non-200 response is an error.
func (r *Remote) Render(ctx context.Context, text string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+url.QueryEscape(text), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qr api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 100))
		return nil, fmt.Errorf("qr api failed: code %d body %q", resp.StatusCode, snippet)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read qr image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("qr api returned an empty image")
	}
	return data, nil
}

// Local encodes QR codes in-process, with no network round-trip.
type Local struct {
	level goqr.RecoveryLevel
}

// NewLocal creates an in-process renderer.
func NewLocal() *Local {
	return &Local{level: goqr.Medium}
}

func (l *Local) Render(_ context.Context, text string) ([]byte, error) {
	png, err := goqr.Encode(text, l.level, Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
