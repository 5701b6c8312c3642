package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedImage rejects files that are not common web image formats.
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// DirImages stores images in a local directory served under BaseURL.
type DirImages struct {
	Dir     string
	BaseURL string
}

// Save writes r to a fresh file and returns its URL.
func (d DirImages) Save(ctx context.Context, productID, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExts[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return d.url(name), nil
}

// Remove deletes an image previously returned by Save. URLs outside BaseURL
// are ignored.
func (d DirImages) Remove(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, d.url(""))
	if !ok || name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(d.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d DirImages) url(name string) string {
	return strings.TrimRight(d.BaseURL, "/") + "/" + name
}
