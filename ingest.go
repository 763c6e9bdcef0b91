// ingest.go validates uploads and turns them into embedded data URLs
package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrReadError       = errors.New("error reading file")
)

// UploadKind selects the size ceiling and MIME allow-list for an upload.
type UploadKind string

const (
	UploadGalleryImage   UploadKind = "gallery"
	UploadVideo          UploadKind = "video"
	UploadProfilePicture UploadKind = "profile"
	UploadDocPhoto       UploadKind = "doc:photo"
	UploadDocNID         UploadKind = "doc:nid"
	UploadDocCV          UploadKind = "doc:cv"
	UploadDocBank        UploadKind = "doc:bank"
	UploadDocOther       UploadKind = "doc:other"
)

// DocUploadKind maps a document slot's type to its upload rules.
func DocUploadKind(t DocumentType) (UploadKind, error) {
	switch t {
	case DocumentPhoto:
		return UploadDocPhoto, nil
	case DocumentNID:
		return UploadDocNID, nil
	case DocumentCV:
		return UploadDocCV, nil
	case DocumentBank:
		return UploadDocBank, nil
	case DocumentOther:
		return UploadDocOther, nil
	default:
		return "", fmt.Errorf("%w: unknown document type %q", ErrValidation, t)
	}
}

type uploadRule struct {
	maxBytes int64
	allowed  []string
}

const mb = 1024 * 1024

// The limits and allow-lists mirror what the site promises next to each
// upload control. Note "photo" documents accept gif while "nid" does not.
var uploadRules = map[UploadKind]uploadRule{
	UploadGalleryImage:   {10 * mb, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}},
	UploadProfilePicture: {10 * mb, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}},
	UploadVideo:          {50 * mb, []string{"video/mp4", "video/webm", "video/ogg"}},
	UploadDocPhoto:       {5 * mb, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}},
	UploadDocNID:         {5 * mb, []string{"image/jpeg", "image/png", "image/webp"}},
	UploadDocCV:          {5 * mb, []string{"application/pdf"}},
	UploadDocBank:        {5 * mb, []string{"application/pdf", "image/jpeg", "image/png"}},
	UploadDocOther:       {5 * mb, []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}},
}

// EmbeddedAsset is a validated upload encoded as a self-describing data URL
// plus the metadata the galleries display.
type EmbeddedAsset struct {
	URL      string
	FileName string
	FileSize int64
	FileType string
}

func (a *EmbeddedAsset) IsImage() bool {
	return strings.HasPrefix(a.FileType, "image/")
}

// Ingest validates size and type before touching the file bytes; a rejected
// upload does no work and mutates nothing. size is the declared upload size
// and is re-checked while reading in case the declaration was wrong.
func Ingest(r io.Reader, fileName, declaredType string, size int64, kind UploadKind) (*EmbeddedAsset, error) {
	rule, ok := uploadRules[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no rules for upload kind %q", ErrUnsupportedType, kind)
	}

	if size > rule.maxBytes {
		return nil, fmt.Errorf("%w: maximum size is %s", ErrFileTooLarge, formatBytes(rule.maxBytes))
	}

	mediaType := declaredType
	if parsed, _, err := mime.ParseMediaType(declaredType); err == nil {
		mediaType = parsed
	}
	if !contains(rule.allowed, mediaType) {
		return nil, fmt.Errorf("%w: allowed types: %s", ErrUnsupportedType, strings.Join(rule.allowed, ", "))
	}

	data, err := io.ReadAll(io.LimitReader(r, rule.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadError, err)
	}
	if int64(len(data)) > rule.maxBytes {
		return nil, fmt.Errorf("%w: maximum size is %s", ErrFileTooLarge, formatBytes(rule.maxBytes))
	}

	return &EmbeddedAsset{
		URL:      "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
		FileName: fileName,
		FileSize: int64(len(data)),
		FileType: mediaType,
	}, nil
}

// uploadPatch renders the asset as the partial item update each list expects.
// Documents only replace their preview when the upload itself is an image;
// a PDF keeps whatever preview the slot already had.
func uploadPatch(list ListName, a *EmbeddedAsset) ([]byte, error) {
	var fields map[string]any
	switch list {
	case ListGalleryImages:
		fields = map[string]any{
			"url":      a.URL,
			"fileName": a.FileName,
			"fileSize": a.FileSize,
			"fileType": a.FileType,
		}
	case ListGalleryVideos:
		fields = map[string]any{
			"url":      a.URL,
			"fileName": a.FileName,
		}
	case ListDocuments:
		fields = map[string]any{
			"url":      a.URL,
			"fileName": a.FileName,
		}
		if a.IsImage() {
			fields["preview"] = a.URL
		}
	default:
		return nil, fmt.Errorf("%w: list %q does not take uploads", ErrUnknownList, list)
	}
	return json.Marshal(fields)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// formatBytes renders a byte count the way the site does (1024-based units).
func formatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d %s", int64(v), units[i])
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}
