package files

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// PrepareImage implements domain.FileExtractor. Images within MaxImageDim in
// a provider friendly format are passed through untouched; others are
// downscaled and re-encoded (PNG for png/gif, JPEG otherwise).
func (e *Extractor) PrepareImage(ctx context.Context, file domain.UploadedFile) (domain.ImageInput, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageInput{}, err
	}
	mt := detectMIME(file.Name, file.MimeType, file.Data)
	if categorize(mt) != catImage {
		return domain.ImageInput{}, domain.NewError(domain.KindUnsupportedFileType,
			fmt.Sprintf("%s is not an image", displayName(file.Name)), nil)
	}

	img, format, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return domain.ImageInput{}, extractionFailed(file.Name, err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return domain.ImageInput{}, extractionFailed(file.Name, fmt.Errorf("invalid image bounds: %dx%d", w, h))
	}

	maxSide := max(w, h)
	needsScale := e.MaxImageDim > 0 && maxSide > e.MaxImageDim
	if !needsScale && (format == "png" || format == "jpeg" || format == "gif") {
		return domain.ImageInput{Name: file.Name, MimeType: mt, Data: file.Data}, nil
	}

	if needsScale {
		scale := float64(e.MaxImageDim) / float64(maxSide)
		nw := max(int(math.Round(float64(w)*scale)), 1)
		nh := max(int(math.Round(float64(h)*scale)), 1)

		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	outType := "image/jpeg"
	if format == "png" || format == "gif" {
		outType = "image/png"
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return domain.ImageInput{}, extractionFailed(file.Name, err)
	}
	return domain.ImageInput{Name: file.Name, MimeType: outType, Data: buf.Bytes()}, nil
}
