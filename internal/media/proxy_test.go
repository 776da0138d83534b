package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/pkg/storage"
)

func TestFetchDataURL(t *testing.T) {
	blob := storage.NewMemory()
	ref, err := blob.Save(context.Background(), []byte("hi"), "image/png", "proof.png", storage.NamespaceProofs)
	require.NoError(t, err)

	img, err := NewProxy(blob, nil).Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,aGk=", img.DataURL)
	assert.Equal(t, "image/png", img.Mime)
}

func TestFetchErrors(t *testing.T) {
	p := NewProxy(storage.NewMemory(), nil)
	ctx := context.Background()

	_, err := p.Fetch(ctx, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	_, err = p.Fetch(ctx, "https://evil.example.com/x.png")
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	_, err = p.Fetch(ctx, "payment-proofs/../../etc/passwd")
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	_, err = p.Fetch(ctx, "memory://payment-proofs/abc/proof.png")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestHandleAcceptsFileID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	blob := storage.NewMemory()
	ref, err := blob.Save(context.Background(), []byte("qr"), "image/png", "BIS-ACAD-1.png", storage.NamespaceTickets)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/media/proxy", NewProxy(blob, nil).Handle)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/proxy?fileId="+url.QueryEscape(ref), nil))

	var body struct {
		Success bool  `json:"success"`
		Data    Image `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "data:image/png;base64,cXI=", body.Data.DataURL)
}
