package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Amaz3n/inkwell/model"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Renderer produces the flattened executed artifact from the source bytes,
// the field layout, and the merged value map. Pure: same inputs, same
// output.
type Renderer interface {
	RenderExecuted(source []byte, fields []model.Field, merged model.Values) ([]byte, error)
}

// PDFRenderer stamps field values onto the source PDF as per-page
// watermarks: text fields render as text, drawn signatures as images,
// checked checkboxes as a mark.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) RenderExecuted(source []byte, fields []model.Field, merged model.Values) ([]byte, error) {
	rs := bytes.NewReader(source)

	dims, err := api.PageDims(rs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	stamps := make(map[int][]*pdfmodel.Watermark)
	for _, f := range fields {
		value, ok := merged[f.ID]
		if !ok {
			continue
		}
		if f.Page < 0 || f.Page >= len(dims) {
			return nil, fmt.Errorf("field %s references page %d of a %d-page document", f.ID, f.Page, len(dims))
		}

		wm, err := fieldStamp(f, value, dims[f.Page])
		if err != nil {
			return nil, err
		}
		if wm == nil {
			continue
		}
		stamps[f.Page+1] = append(stamps[f.Page+1], wm)
	}

	if len(stamps) == 0 {
		// nothing to flatten; the executed copy is the source
		return source, nil
	}

	if _, err := rs.Seek(0, 0); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(rs, &buf, stamps, nil); err != nil {
		return nil, fmt.Errorf("failed to stamp fields: %w", err)
	}
	return buf.Bytes(), nil
}

// fieldStamp builds one watermark for a field value. Field boxes are
// normalized with the origin top-left; pdfcpu offsets run from the
// bottom-left corner in points.
func fieldStamp(f model.Field, value any, dim types.Dim) (*pdfmodel.Watermark, error) {
	offX := f.X * dim.Width
	offY := dim.Height - (f.Y+f.H)*dim.Height

	switch f.Type {
	case model.FieldSignature:
		s, _ := value.(string)
		img, err := decodeImageValue(s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.ID, err)
		}
		desc := fmt.Sprintf("pos:bl, off:%.1f %.1f, scale:%.3f rel, rot:0", offX, offY, f.W)
		return api.ImageWatermarkForReader(bytes.NewReader(img), desc, true, false, types.POINTS)

	case model.FieldCheckbox:
		b, _ := value.(bool)
		if !b {
			return nil, nil
		}
		desc := fmt.Sprintf("fontname:Helvetica, points:12, pos:bl, off:%.1f %.1f, scale:1 abs, rot:0, color:#000000", offX, offY)
		return api.TextWatermark("X", desc, true, false, types.POINTS)

	default:
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		desc := fmt.Sprintf("fontname:Helvetica, points:10, pos:bl, off:%.1f %.1f, scale:1 abs, rot:0, color:#000000", offX, offY)
		return api.TextWatermark(s, desc, true, false, types.POINTS)
	}
}

// decodeImageValue decodes a drawn signature submitted as a data URL.
func decodeImageValue(v string) ([]byte, error) {
	if !strings.HasPrefix(v, "data:image/") {
		return nil, fmt.Errorf("signature value is not an image data URL")
	}
	_, payload, ok := strings.Cut(v, ",")
	if !ok {
		return nil, fmt.Errorf("malformed image data URL")
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return img, nil
}
