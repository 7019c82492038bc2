package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// ExportSVG returns the last rendered output as vector bytes.
func (e *Engine) ExportSVG() ([]byte, error) {
	out, ok := e.Output()
	if !ok {
		return nil, ErrNothingRendered
	}
	return []byte(out), nil
}

// ExportPNG rasterizes the last rendered output by drawing the vector form
// onto an offscreen RGBA surface at its native dimensions.
func (e *Engine) ExportPNG() ([]byte, error) {
	out, ok := e.Output()
	if !ok {
		return nil, ErrNothingRendered
	}
	return rasterize(out)
}

func rasterize(svg string) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("decode svg: %w", err)
	}

	w := int(icon.ViewBox.W + 0.5)
	h := int(icon.ViewBox.H + 0.5)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg has no drawable area (%dx%d)", w, h)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
