package files_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/files"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessText(t *testing.T) {
	t.Parallel()
	e := files.NewExtractor()
	cases := []struct {
		name     string
		file     domain.UploadedFile
		contains string
	}{
		{"plain", domain.UploadedFile{Name: "notes.txt", Data: []byte("\xef\xbb\xbfhello notes")}, "hello notes"},
		{"markdown by ext", domain.UploadedFile{Name: "README.md", MimeType: "application/octet-stream", Data: []byte("# Title")}, "# Title"},
		{"json", domain.UploadedFile{Name: "a.json", MimeType: "application/json", Data: []byte(`{"a":1}`)}, `{"a":1}`},
		{"html", domain.UploadedFile{Name: "page.html", Data: []byte(`<html><head><title>Doc</title><script>evil()</script></head><body><p>Hello   <b>world</b></p></body></html>`)}, "Hello world"},
		{"rss", domain.UploadedFile{Name: "feed.rss", Data: []byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>News</title><item><title>First post</title><link>https://example.com/1</link></item></channel></rss>`)}, "First post"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Process(context.Background(), tc.file)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got.Kind != domain.FileKindText {
				t.Fatalf("expected text kind, got %q", got.Kind)
			}
			if !strings.Contains(got.ExtractedText, tc.contains) {
				t.Fatalf("extracted %q, want it to contain %q", got.ExtractedText, tc.contains)
			}
			if strings.Contains(got.ExtractedText, "evil") {
				t.Fatalf("script content leaked: %q", got.ExtractedText)
			}
			if got.SizeBytes != int64(len(tc.file.Data)) || got.DisplayName != tc.file.Name {
				t.Fatalf("unexpected metadata %+v", got)
			}
		})
	}
}

func TestProcessImageReturnsMetadataOnly(t *testing.T) {
	t.Parallel()
	e := files.NewExtractor()
	got, err := e.Process(context.Background(), domain.UploadedFile{Name: "shot.png", MimeType: "image/png", Data: pngBytes(t, 40, 20)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Kind != domain.FileKindImage || got.ExtractedText != "" {
		t.Fatalf("unexpected image result %+v", got)
	}
	if got.Width != 40 || got.Height != 20 {
		t.Fatalf("unexpected dimensions %dx%d", got.Width, got.Height)
	}
}

func TestProcessFailures(t *testing.T) {
	t.Parallel()
	e := files.NewExtractor()
	cases := []struct {
		name string
		file domain.UploadedFile
		want domain.Kind
	}{
		{"zip", domain.UploadedFile{Name: "archive.zip", MimeType: "application/zip", Data: []byte("PK\x03\x04")}, domain.KindUnsupportedFileType},
		{"sniffed binary", domain.UploadedFile{Name: "blob", Data: []byte{0x00, 0x01, 0x02, 0xff}}, domain.KindUnsupportedFileType},
		{"invalid utf8", domain.UploadedFile{Name: "bad.txt", Data: []byte{0xff, 0xfe, 0xfd}}, domain.KindFileExtractionFailed},
		{"broken pdf", domain.UploadedFile{Name: "doc.pdf", Data: []byte("%PDF-1.4 not really")}, domain.KindFileExtractionFailed},
		{"broken png", domain.UploadedFile{Name: "x.png", Data: []byte("nope")}, domain.KindFileExtractionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Process(context.Background(), tc.file)
			if !domain.IsKind(err, tc.want) {
				t.Fatalf("got %v, want %s", err, tc.want)
			}
		})
	}
}

func TestPrepareImage(t *testing.T) {
	t.Parallel()
	e := files.NewExtractor()
	e.MaxImageDim = 64

	small := pngBytes(t, 32, 16)
	got, err := e.PrepareImage(context.Background(), domain.UploadedFile{Name: "s.png", Data: small})
	if err != nil {
		t.Fatalf("PrepareImage: %v", err)
	}
	if !bytes.Equal(got.Data, small) || got.MimeType != "image/png" {
		t.Fatalf("small png should pass through untouched")
	}

	got, err = e.PrepareImage(context.Background(), domain.UploadedFile{Name: "big.png", Data: pngBytes(t, 256, 128)})
	if err != nil {
		t.Fatalf("PrepareImage: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(got.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 32 || got.MimeType != "image/png" {
		t.Fatalf("expected 64x32 png, got %dx%d %s", cfg.Width, cfg.Height, got.MimeType)
	}

	_, err = e.PrepareImage(context.Background(), domain.UploadedFile{Name: "a.txt", Data: []byte("text")})
	if !domain.IsKind(err, domain.KindUnsupportedFileType) {
		t.Fatalf("expected unsupported_file_type, got %v", err)
	}
}
