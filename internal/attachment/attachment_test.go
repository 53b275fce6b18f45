package attachment

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(size int64) domain.Upload {
	return domain.Upload{
		Name:        "notes.pdf",
		ContentType: "application/pdf",
		Kind:        domain.AttachmentFile,
		Data:        bytes.Repeat([]byte{'x'}, int(size)),
	}
}

func TestSizeBoundary(t *testing.T) {
	v := NewValidator(nil)

	assert.NoError(t, v.Validate(upload(MaxSize)))

	err := v.Validate(upload(MaxSize + 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)

	var se *SizeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, MaxSize+1, se.Size)
	assert.Equal(t, int64(10485760), se.Max)
}

func TestValidateRejectsEmptyAndUnknownKind(t *testing.T) {
	v := NewValidator(nil)

	assert.ErrorIs(t, v.Validate(upload(0)), ErrEmpty)

	up := upload(4)
	up.Kind = "video"
	assert.ErrorIs(t, v.Validate(up), ErrUnknownKind)
}

func TestAllowedTypes(t *testing.T) {
	v := NewValidator([]string{"image/*", " application/pdf ", ""})

	tests := []struct {
		contentType string
		ok          bool
	}{
		{"application/pdf", true},
		{"image/png", true},
		{"image/jpeg; charset=binary", true},
		{"audio/webm", false},
		{"imagex/png", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			up := upload(4)
			up.ContentType = tt.contentType
			err := v.Validate(up)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrTypeNotAllowed)
			}
		})
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	up, err := NewValidator(nil).FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "cv.txt", up.Name)
	assert.Equal(t, domain.AttachmentFile, up.Kind)
	assert.Contains(t, up.ContentType, "text/plain")
	assert.Equal(t, int64(5), up.Size())
}

func TestFromPathOversize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxSize+1))
	require.NoError(t, f.Close())

	_, err = NewValidator(nil).FromPath(path)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFromPathMissing(t *testing.T) {
	_, err := NewValidator(nil).FromPath(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetectTypeSniffs(t *testing.T) {
	assert.Equal(t, "image/png", DetectType("noext", []byte("\x89PNG\r\n\x1a\n0000")))
}
