package registrations

import (
	"encoding/base64"
	"path"
	"strings"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/pkg/storage"
)

// DecodeProof decodes a screenshot sent either as a data URL
// ("data:image/png;base64,...") or as bare base64. The MIME type from the
// data URL wins over the declared one.
func DecodeProof(screenshot, mimeType string) ([]byte, string, error) {
	s := strings.TrimSpace(screenshot)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ";base64,"); i > 0 {
			if mt := s[len("data:"):i]; mt != "" {
				mimeType = mt
			}
		}
	}
	if i := strings.Index(s, "base64,"); i >= 0 {
		s = s[i+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, "", apperr.Wrap(apperr.InvalidInput, "screenshot is not valid base64", err)
		}
	}
	if len(data) == 0 {
		return nil, "", apperr.E(apperr.InvalidInput, "screenshot is empty")
	}
	if len(data) > storage.MaxObjectSize {
		return nil, "", apperr.E(apperr.InvalidInput, "screenshot is too large")
	}
	return data, mimeType, nil
}

// proofFilename falls back to a name matching the MIME type.
func proofFilename(name, mimeType string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name != "" && name != "." && name != "/" {
		return name
	}
	switch mimeType {
	case "image/jpeg":
		return "proof.jpg"
	case "image/webp":
		return "proof.webp"
	}
	return "proof.png"
}

func isJPEGOrPNG(mimeType, filename string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/png":
		return true
	case "":
		ct := storage.ContentTypeForFilename(filename)
		return ct == "image/jpeg" || ct == "image/png"
	}
	return false
}
