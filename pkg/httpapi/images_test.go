package httpapi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirImagesSaveAndRemove(t *testing.T) {
	d := DirImages{Dir: t.TempDir(), BaseURL: "/images/"}
	ctx := context.Background()

	url, err := d.Save(ctx, "p1", "cake.JPG", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/images/"))
	assert.FileExists(t, filepath.Join(d.Dir, filepath.Base(url)))

	require.NoError(t, d.Remove(ctx, url))
	assert.NoFileExists(t, filepath.Join(d.Dir, filepath.Base(url)))
	assert.NoError(t, d.Remove(ctx, url), "removing twice is fine")
	assert.NoError(t, d.Remove(ctx, "https://elsewhere/x.png"))
	assert.NoError(t, d.Remove(ctx, "/images/../secret"))
}

func TestDirImagesSaveCleansUpFailedCopy(t *testing.T) {
	d := DirImages{Dir: t.TempDir(), BaseURL: "/images"}
	boom := errors.New("connection reset")

	_, err := d.Save(context.Background(), "p1", "cake.png", iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
	entries, err := os.ReadDir(d.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = d.Save(context.Background(), "p1", "cake.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
