package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeFile(n int) *bytes.Reader {
	return bytes.NewReader(bytes.Repeat([]byte{0x42}, n))
}

func TestIngestRejectsOversizeCV(t *testing.T) {
	size := int64(6 * mb)
	_, err := Ingest(fakeFile(int(size)), "cv.pdf", "application/pdf", size, UploadDocCV)
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Contains(t, err.Error(), "5 MB")
}

func TestIngestRejectsWrongTypeForCV(t *testing.T) {
	_, err := Ingest(fakeFile(100), "photo.png", "image/png", 100, UploadDocCV)
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Contains(t, err.Error(), "application/pdf")
}

func TestIngestAcceptsValidCV(t *testing.T) {
	size := int64(2 * mb)
	asset, err := Ingest(fakeFile(int(size)), "resume.pdf", "application/pdf", size, UploadDocCV)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(asset.URL, "data:application/pdf;base64,"))
	require.Equal(t, "resume.pdf", asset.FileName)
	require.Equal(t, size, asset.FileSize)
	require.Equal(t, "application/pdf", asset.FileType)
	require.False(t, asset.IsImage())
}

func TestIngestDocumentTypeAllowLists(t *testing.T) {
	tests := []struct {
		kind     UploadKind
		mimeType string
		wantErr  bool
	}{
		{UploadDocPhoto, "image/gif", false},
		{UploadDocNID, "image/gif", true},
		{UploadDocNID, "image/webp", false},
		{UploadDocBank, "image/webp", true},
		{UploadDocBank, "application/pdf", false},
		{UploadDocOther, "image/webp", false},
		{UploadDocOther, "video/mp4", true},
	}
	for _, tt := range tests {
		_, err := Ingest(fakeFile(64), "f", tt.mimeType, 64, tt.kind)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrUnsupportedType, "%s should reject %s", tt.kind, tt.mimeType)
		} else {
			require.NoError(t, err, "%s should accept %s", tt.kind, tt.mimeType)
		}
	}
}

func TestIngestVideoLimits(t *testing.T) {
	size := int64(51 * mb)
	_, err := Ingest(fakeFile(0), "clip.mp4", "video/mp4", size, UploadVideo)
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Contains(t, err.Error(), "50 MB")

	_, err = Ingest(fakeFile(64), "clip.mov", "video/quicktime", 64, UploadVideo)
	require.ErrorIs(t, err, ErrUnsupportedType)

	asset, err := Ingest(fakeFile(64), "clip.webm", "video/webm", 64, UploadVideo)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(asset.URL, "data:video/webm;base64,"))
}

func TestIngestGalleryImageLimits(t *testing.T) {
	_, err := Ingest(fakeFile(0), "big.jpg", "image/jpeg", 11*mb, UploadGalleryImage)
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Contains(t, err.Error(), "10 MB")

	asset, err := Ingest(fakeFile(128), "pic.webp", "image/webp", 128, UploadGalleryImage)
	require.NoError(t, err)
	require.True(t, asset.IsImage())
}

func TestIngestRechecksSizeWhileReading(t *testing.T) {
	// declared size fits, actual stream does not
	actual := 6 * mb
	_, err := Ingest(fakeFile(actual), "cv.pdf", "application/pdf", 100, UploadDocCV)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestIngestParsesMediaTypeParameters(t *testing.T) {
	asset, err := Ingest(fakeFile(16), "clip.webm", "video/webm; codecs=vp9", 16, UploadVideo)
	require.NoError(t, err)
	require.Equal(t, "video/webm", asset.FileType)
}

func TestUploadPatchShapes(t *testing.T) {
	img := &EmbeddedAsset{URL: "data:image/png;base64,AAAA", FileName: "a.png", FileSize: 3, FileType: "image/png"}
	pdf := &EmbeddedAsset{URL: "data:application/pdf;base64,AAAA", FileName: "a.pdf", FileSize: 3, FileType: "application/pdf"}

	decode := func(b []byte) map[string]any {
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	}

	b, err := uploadPatch(ListGalleryImages, img)
	require.NoError(t, err)
	m := decode(b)
	require.Equal(t, img.URL, m["url"])
	require.Equal(t, "a.png", m["fileName"])
	require.Equal(t, float64(3), m["fileSize"])
	require.Equal(t, "image/png", m["fileType"])

	b, err = uploadPatch(ListGalleryVideos, pdf)
	require.NoError(t, err)
	m = decode(b)
	require.Equal(t, pdf.URL, m["url"])
	require.NotContains(t, m, "fileSize")

	// documents: preview follows image uploads only
	b, err = uploadPatch(ListDocuments, img)
	require.NoError(t, err)
	require.Equal(t, img.URL, decode(b)["preview"])

	b, err = uploadPatch(ListDocuments, pdf)
	require.NoError(t, err)
	require.NotContains(t, decode(b), "preview")

	_, err = uploadPatch(ListSkills, img)
	require.ErrorIs(t, err, ErrUnknownList)
}

func TestDocUploadKindCoversAllTypes(t *testing.T) {
	for _, dt := range []DocumentType{DocumentPhoto, DocumentNID, DocumentCV, DocumentBank, DocumentOther} {
		kind, err := DocUploadKind(dt)
		require.NoError(t, err)
		_, ok := uploadRules[kind]
		require.True(t, ok, "no upload rules for %s", kind)
	}
	_, err := DocUploadKind(DocumentType("passport"))
	require.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "0 Bytes", formatBytes(0))
	require.Equal(t, "512 Bytes", formatBytes(512))
	require.Equal(t, "1 KB", formatBytes(1024))
	require.Equal(t, "5 MB", formatBytes(5*mb))
	require.Equal(t, "1.50 KB", formatBytes(1536))
}
