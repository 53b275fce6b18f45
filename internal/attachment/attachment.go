// Package attachment enforces size and type policy on uploads before they
// reach the composer.
package attachment

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/skillswap/internal/domain"
)

// MaxSize is the largest accepted upload in bytes (10 MiB).
const MaxSize int64 = 10 * 1024 * 1024

var (
	ErrTooLarge       = errors.New("attachment: file too large")
	ErrEmpty          = errors.New("attachment: file is empty")
	ErrUnknownKind    = errors.New("attachment: unknown kind")
	ErrTypeNotAllowed = errors.New("attachment: content type not allowed")
)

// SizeError reports an oversize upload. It matches ErrTooLarge.
type SizeError struct {
	Name string
	Size int64
	Max  int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("attachment %q is %d bytes, limit is %d", e.Name, e.Size, e.Max)
}

func (e *SizeError) Unwrap() error { return ErrTooLarge }

// Validator checks uploads. A zero Validator accepts any content type.
type Validator struct {
	allowed []string
}

// NewValidator returns a Validator restricted to the given content types.
// Entries may be exact ("application/pdf") or wildcards ("image/*").
// An empty list allows everything.
func NewValidator(allowed []string) *Validator {
	var clean []string
	for _, a := range allowed {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			clean = append(clean, a)
		}
	}
	return &Validator{allowed: clean}
}

// Validate returns nil if up may enter the delivery pipeline.
func (v *Validator) Validate(up domain.Upload) error {
	if err := checkSize(up.Name, up.Size()); err != nil {
		return err
	}
	if up.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, up.Name)
	}
	if !up.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, up.Kind)
	}
	if !v.allows(up.ContentType) {
		return fmt.Errorf("%w: %s", ErrTypeNotAllowed, up.ContentType)
	}
	return nil
}

func checkSize(name string, size int64) error {
	if size > MaxSize {
		return &SizeError{Name: name, Size: size, Max: MaxSize}
	}
	return nil
}

func (v *Validator) allows(contentType string) bool {
	if v == nil || len(v.allowed) == 0 {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, a := range v.allowed {
		if a == mt {
			return true
		}
		if prefix, ok := strings.CutSuffix(a, "/*"); ok && strings.HasPrefix(mt, prefix+"/") {
			return true
		}
	}
	return false
}

// FromPath loads a file as an upload of the file kind. Oversize files are
// rejected from their metadata without being read.
func (v *Validator) FromPath(path string) (domain.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("attachment: %w", err)
	}
	if info.IsDir() {
		return domain.Upload{}, fmt.Errorf("attachment: %s is a directory", path)
	}
	name := filepath.Base(path)
	if err := checkSize(name, info.Size()); err != nil {
		return domain.Upload{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("attachment: %w", err)
	}
	defer f.Close()

	// The extra byte catches files that grew after Stat.
	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("attachment: reading %s: %w", name, err)
	}

	up := domain.Upload{
		Name:        name,
		ContentType: DetectType(name, data),
		Kind:        domain.AttachmentFile,
		Data:        data,
	}
	if err := v.Validate(up); err != nil {
		return domain.Upload{}, err
	}
	return up, nil
}

// DetectType guesses a content type from the file extension, falling back
// to sniffing the data.
func DetectType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
