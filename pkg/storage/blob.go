// Package storage is the blob store for payment-proof images and ticket QR codes.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxObjectSize caps uploads and proxied reads (10MB).
	MaxObjectSize = 10 * 1024 * 1024
	// NamespaceProofs holds payment screenshots.
	NamespaceProofs = "payment-proofs"
	// NamespaceTickets holds ticket QR codes.
	NamespaceTickets = "event-tickets"
)

var (
	// ErrForeignRef is returned for references that do not point into this store.
	ErrForeignRef = errors.New("reference is not an object of this store")
	// ErrBadKey is returned for keys outside the known namespaces.
	ErrBadKey = errors.New("invalid object key")
	// ErrObjectNotFound is returned when the object does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// Blob is the collaborator contract used by the services.
type Blob interface {
	// Save stores data and returns a URL that Open and Delete accept.
	Save(ctx context.Context, data []byte, mimeType, filename, namespace string) (string, error)
	Open(ctx context.Context, ref string) (data []byte, contentType string, err error)
	Delete(ctx context.Context, ref string) error
}

var knownExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ContentTypeForFilename returns the MIME type for an image filename extension.
func ContentTypeForFilename(filename string) string {
	if ct, ok := knownExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey returns {namespace}/{random}/{basename}; the random segment keeps
// identically named uploads ("proof.png") apart.
func ObjectKey(namespace, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return path.Join(namespace, uuid.NewString(), base)
}

// CheckKey validates that key lives in one of the known namespaces.
func CheckKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	clean := path.Clean(key)
	if clean != key || strings.Contains(key, "..") {
		return "", ErrBadKey
	}
	if !strings.HasPrefix(key, NamespaceProofs+"/") && !strings.HasPrefix(key, NamespaceTickets+"/") {
		return "", ErrBadKey
	}
	return key, nil
}
