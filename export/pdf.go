package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/sopify/sopify/store"
)

// ErrNoScreenshots is returned when a PDF export is requested for a
// document whose steps carry no image data.
var ErrNoScreenshots = errors.New("export: document has no screenshots")

// PDF renders the document's step screenshots as a PDF, one image per page
// in step order, centred on A4.
func (r *Renderer) PDF(sop *store.SOP) ([]byte, error) {
	if sop == nil {
		return nil, fmt.Errorf("export: nil document")
	}

	var images []io.Reader
	for i, step := range sop.Steps {
		if step.ImgData == "" {
			continue
		}
		raw, err := DecodeDataURI(step.ImgData)
		if err != nil {
			return nil, fmt.Errorf("export: step %d: %w", i+1, err)
		}
		images = append(images, bytes.NewReader(raw))
	}
	if len(images) == 0 {
		return nil, ErrNoScreenshots
	}

	imp, err := api.Import("form:A4, pos:c, scale:0.9 rel", types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("export: import spec: %w", err)
	}

	var buf bytes.Buffer
	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, &buf, images, imp, conf); err != nil {
		return nil, fmt.Errorf("export: import images: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDataURI decodes a base64 image data URI of the form
// "data:image/png;base64,...." into raw bytes.
func DecodeDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:image/") {
		return nil, fmt.Errorf("not an image data URI")
	}
	_, payload, ok := strings.Cut(uri, ";base64,")
	if !ok {
		return nil, fmt.Errorf("missing base64 payload")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}
