package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/sopify/sopify/store"
)

// pngDataURI builds a real encoded PNG wrapped in a data URI.
func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestMarkdownNumbersStepsInOrder(t *testing.T) {
	r := NewRenderer()
	sop := &store.SOP{
		Title:       "Reset a password",
		Description: "How to reset a user password.",
		URL:         "https://admin.example.com",
		Steps: []store.Step{
			{Title: "Open the admin panel", URL: "https://admin.example.com/users"},
			{Title: "Click reset", Description: "Confirm the dialog."},
		},
	}
	out, err := r.Markdown(sop)
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)

	for _, want := range []string{
		"# Reset a password",
		"## 1. Open the admin panel",
		"## 2. Click reset",
		"Confirm the dialog.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in output:\n%s", want, md)
		}
	}
	if strings.Index(md, "## 1.") > strings.Index(md, "## 2.") {
		t.Fatal("steps out of order")
	}
}

func TestMarkdownConvertsHTMLFragments(t *testing.T) {
	r := NewRenderer()
	sop := &store.SOP{
		Title:       "t",
		Description: "<p>Click the <strong>Save</strong> button</p>",
	}
	out, err := r.Markdown(sop)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "**Save**") {
		t.Fatalf("html not converted: %s", out)
	}
}

func TestDecodeDataURI(t *testing.T) {
	uri := pngDataURI(t)
	raw, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("decoded bytes are not a PNG: %v", err)
	}

	bad := []string{
		"nonsense",
		"data:text/plain;base64,aGk=",
		"data:image/png;base64,@@@",
	}
	for _, b := range bad {
		if _, err := DecodeDataURI(b); err == nil {
			t.Errorf("accepted %q", b)
		}
	}
}

func TestPDFFromScreenshots(t *testing.T) {
	r := NewRenderer()
	sop := &store.SOP{
		Title: "t",
		Steps: []store.Step{
			{Title: "one", ImgData: pngDataURI(t)},
			{Title: "no screenshot"},
			{Title: "two", ImgData: pngDataURI(t)},
		},
	}
	out, err := r.PDF(sop)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:min(16, len(out))])
	}
}

func TestPDFWithoutScreenshots(t *testing.T) {
	r := NewRenderer()
	_, err := r.PDF(&store.SOP{Title: "t", Steps: []store.Step{{Title: "bare"}}})
	if !errors.Is(err, ErrNoScreenshots) {
		t.Fatalf("expected ErrNoScreenshots, got %v", err)
	}
}
