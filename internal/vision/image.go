package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Registered decoders for the routed image extensions
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/dshills/mgrep/pkg/types"
)

// Image optimization defaults
const (
	DefaultMaxImageSize = 1024
	DefaultJPEGQuality  = 85
)

// ImageOptions bounds the image sent to the model
type ImageOptions struct {
	MaxSize int // longest side in pixels
	Quality int // JPEG quality 1-100
}

func (o ImageOptions) withDefaults() ImageOptions {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxImageSize
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultJPEGQuality
	}
	return o
}

// Optimize decodes data, flattens it to opaque RGB (grayscale is kept),
// shrinks it so the longest side is at most opts.MaxSize while keeping the
// aspect ratio, and re-encodes it as JPEG.
func Optimize(data []byte, opts ImageOptions) ([]byte, error) {
	opts = opts.withDefaults()

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", types.ErrExtractionFailed, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", types.ErrExtractionFailed)
	}

	dstW, dstH := fitWithin(w, h, opts.MaxSize)
	rect := image.Rect(0, 0, dstW, dstH)

	var dst draw.Image
	if _, gray := src.(*image.Gray); gray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}

	if dstW == w && dstH == h {
		draw.Draw(dst, rect, src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, rect, src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h down so neither side exceeds limit
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
