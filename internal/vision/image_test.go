package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize_ResizesLongestSide(t *testing.T) {
	out, err := Optimize(testPNG(t, 2048, 512), ImageOptions{})
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
}

func TestOptimize_PortraitAndSmall(t *testing.T) {
	out, err := Optimize(testPNG(t, 100, 400), ImageOptions{MaxSize: 200})
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	out, err = Optimize(testPNG(t, 30, 20), ImageOptions{})
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestOptimize_TransparentAndGray(t *testing.T) {
	rgba := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	rgba.Set(1, 1, color.NRGBA{R: 255, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, rgba))
	_, err := Optimize(buf.Bytes(), ImageOptions{})
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	buf.Reset()
	require.NoError(t, png.Encode(&buf, gray))
	out, err := Optimize(buf.Bytes(), ImageOptions{})
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, color.GrayModel, cfg.ColorModel)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 100, 1024, 100, 100},
		{2048, 1024, 1024, 1024, 512},
		{1024, 4096, 1024, 256, 1024},
		{5000, 1, 1024, 1024, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
