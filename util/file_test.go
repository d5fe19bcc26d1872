package util

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	img, err := DecodeImage(encodePNG(t, imaging.New(5, 3, color.White)))
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	_, err = DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestOpenImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ksuid.New().String()+".png")
	require.NoError(t, imaging.Save(imaging.New(4, 2, color.Black), path))

	img, err := OpenImage(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = OpenImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDownloadImage(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, imaging.New(6, 6, color.White))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bg1.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	img, err := DownloadImage(context.Background(), server.URL+"/bg1.png")
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())

	_, err = DownloadImage(context.Background(), server.URL+"/missing.png")
	assert.ErrorContains(t, err, "status 404")
}

func TestBytesMD5(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", BytesMD5(nil))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", BytesMD5([]byte("abc")))
}
