package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

const jpegQuality = 90

var supportedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
	"tiff": true,
	"svg":  true,
	"webp": true,
}

// SupportedFormat reports whether format (any accepted alias) can be produced.
func SupportedFormat(format string) bool {
	return supportedFormats[normalizeOutputFormat(format)]
}

func normalizeOutputFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "png":
		return "png"
	case "jpg", "jpeg":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	default:
		return format
	}
}

// encodeRendered converts a PNG produced by the raster renderer into the
// requested format.
func encodeRendered(pngData []byte, format string) ([]byte, error) {
	switch format {
	case "png":
		return pngData, nil
	case "webp":
		return encodeWebP(pngData)
	case "jpeg", "gif", "bmp", "tiff":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode rendered chart: %w", err)
	}
	return encodeImage(img, format)
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	case "bmp":
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode bmp: %w", err)
		}
	case "tiff":
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, fmt.Errorf("encode tiff: %w", err)
		}
	case "png":
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}

func contentTypeForFormat(format string) string {
	switch normalizeOutputFormat(format) {
	case "jpeg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/" + normalizeOutputFormat(format)
	}
}

func fileExtension(format string) string {
	switch normalizeOutputFormat(format) {
	case "jpeg":
		return "jpg"
	default:
		return normalizeOutputFormat(format)
	}
}
