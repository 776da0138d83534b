package qrcode

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRemoteRender(t *testing.T) {
	var gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotData = r.URL.Query().Get("data")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngMagic)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL+"/?size=400x400&data=", time.Second)
	img, err := r.Render(context.Background(), "https://verify.example/v?ticket=BIS-ACAD-1&t=abc")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, img)
	assert.Equal(t, "https://verify.example/v?ticket=BIS-ACAD-1&t=abc", gotData)
}

func TestRemoteRenderNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL+"/?data=", time.Second).Render(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestRemoteRenderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewRemote(srv.URL+"/?data=", 50*time.Millisecond).Render(context.Background(), "x")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocalRender(t *testing.T) {
	img, err := NewLocal().Render(context.Background(), "https://verify.example/v?ticket=BIS-ACAD-1&t=abc")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}
