package qrlogin

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"

	"scc-link-go/internal/platform/errors"
)

const (
	// qrImageSize is the square pixel size of the rendered code.
	qrImageSize = 256
	// quietZoneModules is the white border around the data area, in modules.
	quietZoneModules = 2
)

// Render converts an opaque session payload into a scannable PNG: 256px
// square, black on white, with a two-module quiet zone. Pure function of the
// payload string.
func Render(payload string) ([]byte, error) {
	const op = "render"

	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, errors.Wrap(errors.KindSession, op, "encode qr payload", err)
	}

	// The encoder's own border is wider than the wire contract asks for;
	// take the bare module grid and lay out the quiet zone ourselves.
	code.DisableBorder = true
	grid := code.Bitmap()

	modules := len(grid) + 2*quietZoneModules
	scale := qrImageSize / modules
	if scale < 1 {
		return nil, errors.New(errors.KindSession, op, "payload too large for qr image size")
	}
	offset := (qrImageSize - len(grid)*scale) / 2

	img := image.NewRGBA(image.Rect(0, 0, qrImageSize, qrImageSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	black := image.NewUniform(color.Black)
	for y, row := range grid {
		for x, dark := range row {
			if !dark {
				continue
			}
			cell := image.Rect(offset+x*scale, offset+y*scale, offset+(x+1)*scale, offset+(y+1)*scale)
			draw.Draw(img, cell, black, image.Point{}, draw.Src)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.KindSession, op, "rasterize qr code", err)
	}
	return buf.Bytes(), nil
}
