package utils

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// fileHeader round-trips a single part through a real multipart body.
func fileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	require.Len(t, form.File["image"], 1)
	return form.File["image"][0]
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestImageUploaderSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	u := NewImageUploader(dir, 0)
	assert.Equal(t, DefaultMaxUploadBytes, u.MaxBytes)

	p, err := u.Save(fileHeader(t, "holiday photo.png", "image/png", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "/uploads/"), p)
	assert.True(t, strings.HasSuffix(p, ".png"), p)
	assert.NotContains(t, p, "holiday")

	stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(p, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)
}

func TestImageUploaderUniqueNames(t *testing.T) {
	dir := t.TempDir()
	u := NewImageUploader(dir, 0)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		p, err := u.Save(fileHeader(t, "same.JPG", "image/jpeg", []byte("jpeg-bytes")))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(p, ".JPG"), "extension is preserved verbatim: %s", p)
		assert.False(t, seen[p], "duplicate name %s", p)
		seen[p] = true
	}
	assert.Len(t, dirEntries(t, dir), 5)
}

func TestImageUploaderRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	u := NewImageUploader(dir, 0)

	_, err := u.Save(fileHeader(t, "notes.txt", "text/plain", []byte("hello")))
	require.Error(t, err)
	assert.True(t, IsUploadRejected(err))
	var re *UploadRejectedError
	require.ErrorAs(t, err, &re)
	assert.False(t, re.TooLarge)
	assert.Empty(t, dirEntries(t, dir))
}

func TestImageUploaderRejectsOversize(t *testing.T) {
	dir := t.TempDir()
	u := NewImageUploader(dir, 1024)

	_, err := u.Save(fileHeader(t, "big.png", "image/png", bytes.Repeat([]byte{0xAB}, 1025)))
	require.Error(t, err)
	var re *UploadRejectedError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.TooLarge)
	assert.Empty(t, dirEntries(t, dir))

	_, err = u.Save(fileHeader(t, "exact.png", "image/png", bytes.Repeat([]byte{0xAB}, 1024)))
	assert.NoError(t, err, "a file of exactly MaxBytes is accepted")
}

func TestImageUploaderSniffsUntypedParts(t *testing.T) {
	dir := t.TempDir()
	u := NewImageUploader(dir, 0)

	p, err := u.Save(fileHeader(t, "pic.png", "application/octet-stream", pngHeader))
	require.NoError(t, err)
	stored, err := os.ReadFile(filepath.Join(dir, filepath.Base(p)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored, "sniffing must not consume the content")

	_, err = u.Save(fileHeader(t, "script.png", "application/octet-stream", []byte("#!/bin/sh\necho hi\n")))
	assert.True(t, IsUploadRejected(err))
	assert.Len(t, dirEntries(t, dir), 1)
}

func TestImageUploaderNoFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	p, err := NewImageUploader(dir, 0).Save(nil)
	require.NoError(t, err)
	assert.Empty(t, p)
	assert.NoDirExists(t, dir)
}
