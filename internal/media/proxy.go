// Package media serves stored images back to the admin dashboard as data
// URLs, so the browser never needs direct bucket access.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/pkg/response"
	"github.com/bis-events/gatepass/pkg/storage"
)

// Image is the proxy payload.
type Image struct {
	DataURL string `json:"dataUrl"`
	Mime    string `json:"mime"`
}

// Proxy reads blobs and encodes them.
type Proxy struct {
	blob   storage.Blob
	logger *zap.Logger
}

// NewProxy creates an image proxy.
func NewProxy(blob storage.Blob, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{blob: blob, logger: logger}
}

// Fetch returns the object behind ref as a base64 data URL.
func (p *Proxy) Fetch(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.E(apperr.InvalidInput, "missing_fileId")
	}
	data, mime, err := p.blob.Open(ctx, ref)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrForeignRef), errors.Is(err, storage.ErrBadKey):
			return nil, apperr.Wrap(apperr.InvalidInput, "reference is not a stored image", err)
		case errors.Is(err, storage.ErrObjectNotFound):
			return nil, apperr.Wrap(apperr.NotFound, "image not found", err)
		}
		p.logger.Warn("image proxy failed", zap.String("ref", ref), zap.Error(err))
		return nil, apperr.Wrap(apperr.UpstreamFailure, "proxy failed", err)
	}
	if mime == "" {
		mime = storage.ContentTypeForFilename(ref)
	}
	return &Image{
		DataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
		Mime:    mime,
	}, nil
}

// RefParam picks the object reference from the query (ref, fileId or id).
func RefParam(c *gin.Context) string {
	for _, k := range []string{"ref", "fileId", "id"} {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

// Handle handles GET /media/proxy?ref=.
func (p *Proxy) Handle(c *gin.Context) {
	img, err := p.Fetch(c.Request.Context(), RefParam(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, img)
}
