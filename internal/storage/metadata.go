package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"protectbox/internal/model"
)

// ObjectName builds the storage key for a case attachment
func ObjectName(caseID, attachmentID, fileName string) string {
	base := filepath.Base(fileName)
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, base)
	return fmt.Sprintf("cases/%s/%s-%s", caseID, attachmentID, base)
}

// NewAttachment builds attachment metadata for a stored object
func NewAttachment(id, name, url, mime string, put PutResult, now time.Time) model.Attachment {
	return model.Attachment{
		ID:         id,
		Name:       name,
		URL:        url,
		Size:       put.Size,
		MIME:       mime,
		SHA256:     put.SHA256,
		UploadedAt: now,
	}
}

// ValidateAttachment validates that attachment metadata has required fields
func ValidateAttachment(a model.Attachment) error {
	if a.Name == "" {
		return fmt.Errorf("file name is required")
	}
	if a.URL == "" {
		return fmt.Errorf("file URL is required")
	}
	if a.Size < 0 {
		return fmt.Errorf("file size must be non-negative")
	}
	return nil
}
