// Package upload holds the image picked for classification until it is
// submitted or discarded.
package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dmitrijs2005/molecheck/internal/client/validation"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxSize is the largest image accepted for upload.
const MaxSize = 10 << 20

// Pending is a selected image and its encoded payload. It lives only in
// memory.
type Pending struct {
	Path   string
	Format string
	Width  int
	Height int

	data    []byte
	encoded string
}

// Open reads the image at path and checks that it is a supported image no
// larger than MaxSize. Bad input is reported as a *validation.Error.
func Open(path string) (*Pending, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &validation.Error{Field: "image", Message: fmt.Sprintf("%s does not exist", path)}
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return FromBytes(filepath.Base(path), data)
}

// FromBytes validates an in-memory image.
func FromBytes(name string, data []byte) (*Pending, error) {
	if len(data) == 0 {
		return nil, &validation.Error{Field: "image", Message: "file is empty"}
	}
	if len(data) > MaxSize {
		return nil, &validation.Error{Field: "image", Message: fmt.Sprintf("file is larger than %d MiB", MaxSize>>20)}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &validation.Error{Field: "image", Message: "not a supported image (jpeg, png, gif, bmp, tiff, webp)"}
	}

	return &Pending{
		Path:   name,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		data:   data,
	}, nil
}

// Bytes returns the raw image. Nil after Reset.
func (p *Pending) Bytes() []byte { return p.data }

// Base64 returns the standard base64 encoding of the image, computed once.
func (p *Pending) Base64() string {
	if p.encoded == "" && len(p.data) > 0 {
		p.encoded = base64.StdEncoding.EncodeToString(p.data)
	}
	return p.encoded
}

func (p *Pending) Size() int { return len(p.data) }

// Reset discards the image.
func (p *Pending) Reset() {
	*p = Pending{}
}

// Empty reports whether p holds no image.
func (p *Pending) Empty() bool { return p == nil || len(p.data) == 0 }
