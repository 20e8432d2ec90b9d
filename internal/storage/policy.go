package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// RejectCode says which attachment check a file failed
type RejectCode string

const (
	RejectExtension RejectCode = "extension"
	RejectSize      RejectCode = "size"
	RejectMime      RejectCode = "mime"
	RejectEmpty     RejectCode = "empty"
)

// AttachmentPolicy is the upload constraint set: an extension allow-list and
// a per-file ceiling in mebibytes. MimeTypes is optional.
type AttachmentPolicy struct {
	MaxFileSizeMB     float64  `json:"maxFileSizeMB" mapstructure:"max_file_size_mb"`
	AllowedExtensions []string `json:"allowedExtensions" mapstructure:"allowed_extensions"`
	MimeTypes         []string `json:"mime,omitempty" mapstructure:"mime_types"`
}

// NewAttachmentPolicy builds a policy with normalized extensions
func NewAttachmentPolicy(maxFileSizeMB float64, extensions []string) AttachmentPolicy {
	p := AttachmentPolicy{MaxFileSizeMB: maxFileSizeMB}
	for _, e := range extensions {
		// Normalize extensions (remove leading dot if present)
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if ext != "" {
			p.AllowedExtensions = append(p.AllowedExtensions, ext)
		}
	}
	return p
}

// MaxBatchFiles caps how many files one upload may carry
const MaxBatchFiles = 10

// multipartOverhead covers part headers and boundaries of a full batch
const multipartOverhead = 64 << 10

// MaxBytes is the exclusive size ceiling
func (p AttachmentPolicy) MaxBytes() int64 {
	return int64(p.MaxFileSizeMB * 1024 * 1024)
}

// MaxBatchBytes bounds a whole multipart upload. Zero means no per-file
// ceiling is configured, so the batch is unbounded too.
func (p AttachmentPolicy) MaxBatchBytes() int64 {
	if p.MaxFileSizeMB <= 0 {
		return 0
	}
	return p.MaxBytes()*MaxBatchFiles + multipartOverhead
}

// Candidate is a file offered for upload
type Candidate struct {
	Name        string
	ContentType string
	Size        int64
}

// Rejection reports why a file was not admitted
type Rejection struct {
	Name   string     `json:"name"`
	Code   RejectCode `json:"code"`
	Reason string     `json:"reason"`
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Name, r.Reason)
}

// ValidateFile checks one file. A nil result means the file is admitted.
func (p AttachmentPolicy) ValidateFile(c Candidate) *Rejection {
	if !p.matchesExtension(c.Name) {
		return &Rejection{
			Name:   c.Name,
			Code:   RejectExtension,
			Reason: fmt.Sprintf("file extension is not allowed. Allowed extensions: %s", strings.Join(p.AllowedExtensions, ", ")),
		}
	}

	if c.Size <= 0 {
		return &Rejection{Name: c.Name, Code: RejectEmpty, Reason: "file is empty"}
	}

	// Ceiling is exclusive: a file of exactly the limit is rejected
	if p.MaxFileSizeMB > 0 && c.Size >= p.MaxBytes() {
		return &Rejection{
			Name:   c.Name,
			Code:   RejectSize,
			Reason: fmt.Sprintf("file size %d bytes must be below %d bytes (%.2f MB)", c.Size, p.MaxBytes(), p.MaxFileSizeMB),
		}
	}

	if len(p.MimeTypes) > 0 && !p.matchesMimeType(c.ContentType) {
		return &Rejection{
			Name:   c.Name,
			Code:   RejectMime,
			Reason: fmt.Sprintf("content type %s is not allowed. Allowed types: %v", c.ContentType, p.MimeTypes),
		}
	}

	return nil
}

// ValidateBatch splits a selection into admitted files and reported rejections
func (p AttachmentPolicy) ValidateBatch(files []Candidate) ([]Candidate, []Rejection) {
	accepted := make([]Candidate, 0, len(files))
	rejected := make([]Rejection, 0)
	for _, f := range files {
		if r := p.ValidateFile(f); r != nil {
			rejected = append(rejected, *r)
			continue
		}
		accepted = append(accepted, f)
	}
	return accepted, rejected
}

// matchesMimeType checks if contentType matches any of the allowed MIME type patterns
func (p AttachmentPolicy) matchesMimeType(contentType string) bool {
	// Parse the content type (handle parameters like "image/png; charset=utf-8")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	for _, allowed := range p.MimeTypes {
		// Support wildcard patterns like "image/*"
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "/*")
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
		} else if mediaType == allowed {
			return true
		}
	}
	return false
}

// matchesExtension checks if fileName has an allowed extension
func (p AttachmentPolicy) matchesExtension(fileName string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "" {
		return false
	}

	for _, allowed := range p.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
