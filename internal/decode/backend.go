package decode

import (
	"errors"
	"fmt"
	"image"

	"github.com/liyue201/goqr"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Backend reads the text of a QR code from an image.
type Backend interface {
	// Name returns the backend name used in configuration and stats.
	Name() string

	// Decode returns the first QR text found in img.
	Decode(img image.Image) (string, error)
}

// NewBackend returns the named backend.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "zxing":
		return ZXing{}, nil
	case "zxing_inverted":
		return ZXing{Inverted: true}, nil
	case "goqr":
		return GoQR{}, nil
	default:
		return nil, fmt.Errorf("unknown decode backend %q", name)
	}
}

// ZXing decodes with the gozxing QR reader. Inverted flips luminance first,
// for patterns whose enhancement swapped dark and light.
type ZXing struct {
	Inverted bool
}

func (z ZXing) Name() string {
	if z.Inverted {
		return "zxing_inverted"
	}
	return "zxing"
}

func (z ZXing) Decode(img image.Image) (string, error) {
	if z.Inverted {
		img = invert(img)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}
	return res.GetText(), nil
}

// GoQR decodes with the liyue201/goqr recogniser.
type GoQR struct{}

func (GoQR) Name() string { return "goqr" }

func (GoQR) Decode(img image.Image) (text string, err error) {
	// goqr indexes past slice bounds on some malformed grids.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("goqr: %v", r)
		}
	}()
	codes, err := goqr.Recognize(img)
	if err != nil {
		return "", err
	}
	for _, c := range codes {
		if len(c.Payload) > 0 {
			return string(c.Payload), nil
		}
	}
	return "", errors.New("goqr: no payload")
}

func invert(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := (19595*r + 38470*g + 7471*bl + 1<<15) >> 24
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = 255 - uint8(lum)
		}
	}
	return out
}
