package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

const (
	maxJSONBody      = 1 << 20
	multipartMemory  = 8 << 20
	maxFilesPerTurn  = 10
	defaultListLimit = 20
)

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Errorf(domain.KindInvalidInput, "request body is larger than %d bytes", tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return domain.Errorf(domain.KindInvalidInput, "request body is empty")
		}
		return domain.NewError(domain.KindInvalidInput, "invalid JSON body", err)
	}
	return nil
}

type fileBody struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	// Data is base64 in JSON.
	Data []byte `json:"data"`
}

type streamBody struct {
	Content string     `json:"content"`
	Model   string     `json:"model,omitempty"`
	Files   []fileBody `json:"files,omitempty"`
}

func (b streamBody) uploads() ([]domain.UploadedFile, error) {
	if len(b.Files) > maxFilesPerTurn {
		return nil, domain.Errorf(domain.KindInvalidInput, "at most %d files per message", maxFilesPerTurn)
	}
	out := make([]domain.UploadedFile, 0, len(b.Files))
	for i, f := range b.Files {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = fmt.Sprintf("file-%d", i+1)
		}
		out = append(out, domain.UploadedFile{Name: name, MimeType: f.MimeType, Data: f.Data})
	}
	return out, nil
}

// readStreamBody accepts JSON with base64 files or a multipart form with
// content, model and files fields.
func readStreamBody(w http.ResponseWriter, r *http.Request, limit int64) (streamBody, []domain.UploadedFile, error) {
	var body streamBody

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		if err := decodeJSON(w, r, limit, &body); err != nil {
			return body, nil, err
		}
		files, err := body.uploads()
		if err == nil && body.Model == "" {
			body.Model = r.URL.Query().Get("model")
		}
		return body, files, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return body, nil, domain.Errorf(domain.KindInvalidInput, "request body is larger than %d bytes", tooLarge.Limit)
		}
		return body, nil, domain.NewError(domain.KindInvalidInput, "invalid multipart body", err)
	}
	defer r.MultipartForm.RemoveAll()

	body.Content = r.FormValue("content")
	body.Model = r.FormValue("model")
	if body.Model == "" {
		body.Model = r.URL.Query().Get("model")
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) > maxFilesPerTurn {
		return body, nil, domain.Errorf(domain.KindInvalidInput, "at most %d files per message", maxFilesPerTurn)
	}
	files := make([]domain.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return body, nil, domain.NewError(domain.KindInvalidInput, "unreadable upload "+fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return body, nil, domain.NewError(domain.KindInvalidInput, "unreadable upload "+fh.Filename, err)
		}
		files = append(files, domain.UploadedFile{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return body, files, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Errorf(domain.KindInvalidInput, "%s must be a non-negative integer", key)
	}
	return n, nil
}

// splitPath returns the non-empty segments of path after prefix.
func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
