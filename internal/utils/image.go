package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	jpegQuality          = 85
	analysisQuality      = 80
	AnalysisMaxDimension = 1024
)

var ErrEmptyImage = errors.New("image data is empty")

// NormalizeJPEG decodes any supported image format and re-encodes it as a
// JPEG. Input that is already JPEG is still re-encoded so stored captures
// carry a consistent quality.
func NormalizeJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if format != "jpeg" {
		img = flatten(img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareForAnalysis shrinks an image so its longest side is at most
// AnalysisMaxDimension and encodes it as JPEG for upload
func PrepareForAnalysis(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = downscale(flatten(img), AnalysisMaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: analysisQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectImageFormat returns the registered format name of data, or an error
// when the bytes are not a decodable image
func DetectImageFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image config: %w", err)
	}
	return format, nil
}

// flatten draws transparent images onto white so JPEG encoding does not turn
// transparent pixels black
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	xdraw.Draw(canvas, bounds, image.White, image.Point{}, xdraw.Src)
	xdraw.Draw(canvas, bounds, img, bounds.Min, xdraw.Over)
	return canvas
}

// downscale resamples img so neither side exceeds maxDimension. Images that
// already fit are returned untouched.
func downscale(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDimension && height <= maxDimension {
		return img
	}

	scale := float64(maxDimension) / float64(max(width, height))
	dst := image.NewRGBA(image.Rect(0, 0,
		max(1, int(float64(width)*scale)),
		max(1, int(float64(height)*scale)),
	))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}
