// Package files extracts conversation context from uploaded attachments.
package files

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/mmcdole/gofeed"
	_ "golang.org/x/image/webp"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// Extractor implements domain.FileExtractor. It is stateless and safe for
// concurrent use.
type Extractor struct {
	// MaxImageDim is the longest side, in pixels, of images sent to providers.
	MaxImageDim int
}

func NewExtractor() *Extractor {
	return &Extractor{MaxImageDim: 1568}
}

func (e *Extractor) Process(ctx context.Context, file domain.UploadedFile) (*domain.ExtractedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mt := detectMIME(file.Name, file.MimeType, file.Data)
	out := &domain.ExtractedFile{
		Kind:        domain.FileKindText,
		DisplayName: displayName(file.Name),
		MimeType:    mt,
		SizeBytes:   int64(len(file.Data)),
	}

	var (
		text string
		err  error
	)
	switch categorize(mt) {
	case catImage:
		cfg, _, derr := image.DecodeConfig(bytes.NewReader(file.Data))
		if derr != nil {
			return nil, extractionFailed(file.Name, derr)
		}
		out.Kind = domain.FileKindImage
		out.Width, out.Height = cfg.Width, cfg.Height
		return out, nil
	case catText:
		text, err = plainText(file.Data)
	case catHTML:
		text, err = htmlText(file.Data)
	case catFeed:
		text, err = feedText(file.Data)
	case catPDF:
		text, err = pdfText(file.Data)
	default:
		return nil, domain.NewError(domain.KindUnsupportedFileType,
			fmt.Sprintf("unsupported file type %q for %s", mt, out.DisplayName), nil)
	}
	if err != nil {
		return nil, extractionFailed(file.Name, err)
	}
	out.ExtractedText = text
	return out, nil
}

func extractionFailed(name string, err error) error {
	return domain.NewError(domain.KindFileExtractionFailed, fmt.Sprintf("could not read %s", displayName(name)), err)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "attachment"
	}
	return name
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var sb strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(collapseSpace(s.Text()))
	})
	return strings.TrimSpace(sb.String()), nil
}

func feedText(data []byte) (string, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(feed.Title)
	sb.WriteString("\n")
	for _, it := range feed.Items {
		sb.WriteString("\n- ")
		sb.WriteString(strings.TrimSpace(it.Title))
		if it.Link != "" {
			sb.WriteString(" (" + it.Link + ")")
		}
		if d := strings.TrimSpace(it.Description); d != "" {
			sb.WriteString("\n  ")
			sb.WriteString(collapseSpace(d))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
