package tub

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// Array is an 8-bit raster stored row-major as Height×Width×Channels, the
// in-memory form of image_array fields.
type Array struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// NewArray allocates a zeroed h×w×c array.
func NewArray(h, w, c int) Array {
	return Array{Height: h, Width: w, Channels: c, Pix: make([]uint8, h*w*c)}
}

// Shape returns [Height, Width, Channels].
func (a Array) Shape() []int { return []int{a.Height, a.Width, a.Channels} }

func (a Array) offset(y, x, c int) int { return (y*a.Width+x)*a.Channels + c }

// At returns the value at row y, column x, channel c.
func (a Array) At(y, x, c int) uint8 { return a.Pix[a.offset(y, x, c)] }

// Set stores v at row y, column x, channel c.
func (a Array) Set(y, x, c int, v uint8) { a.Pix[a.offset(y, x, c)] = v }

func (a Array) valid() bool {
	return a.Height > 0 && a.Width > 0 && len(a.Pix) == a.Height*a.Width*a.Channels &&
		(a.Channels == 1 || a.Channels == 3 || a.Channels == 4)
}

// Image converts the array to an image.Image: 1 channel is grayscale, 3 is
// opaque RGB and 4 is non-premultiplied RGBA.
func (a Array) Image() (image.Image, error) {
	if !a.valid() {
		return nil, fmt.Errorf("%w: array shape %v with %d bytes", ErrValueType, a.Shape(), len(a.Pix))
	}
	rect := image.Rect(0, 0, a.Width, a.Height)
	switch a.Channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, a.Pix)
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(a.Pix); i, j = i+3, j+4 {
			img.Pix[j] = a.Pix[i]
			img.Pix[j+1] = a.Pix[i+1]
			img.Pix[j+2] = a.Pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	default:
		img := image.NewNRGBA(rect)
		copy(img.Pix, a.Pix)
		return img, nil
	}
}

// ArrayFromImage converts img to an Array. Grayscale images keep one channel;
// images without transparency become 3-channel RGB, others 4-channel RGBA.
func ArrayFromImage(img image.Image) Array {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		a := NewArray(b.Dy(), b.Dx(), 1)
		for y := 0; y < a.Height; y++ {
			copy(a.Pix[y*a.Width:(y+1)*a.Width], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return a
	}
	channels := 3
	if !opaque(img) {
		channels = 4
	}
	a := NewArray(b.Dy(), b.Dx(), channels)
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			o := a.offset(y, x, 0)
			a.Pix[o], a.Pix[o+1], a.Pix[o+2] = c.R, c.G, c.B
			if channels == 4 {
				a.Pix[o+3] = c.A
			}
		}
	}
	return a
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// ImageFormat selects the sidecar encoding for media fields.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpg"
)

// ParseImageFormat accepts png, jpg and jpeg.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("tub: unsupported image format %q", s)
	}
}

func (f ImageFormat) ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

func writeImage(path string, img image.Image, format ImageFormat, quality int) error {
	var buf bytes.Buffer
	var err error
	if format == FormatJPEG {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// readImage loads a sidecar file. A missing file is ErrMissingMediaFile and an
// undecodable payload is ErrRecordCorrupt; any other I/O error is returned as is.
func readImage(path string) (image.Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingMediaFile, path)
		}
		return nil, err
	}
	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(b))
	default:
		img, err = png.Decode(bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRecordCorrupt, path, err)
	}
	return img, nil
}
