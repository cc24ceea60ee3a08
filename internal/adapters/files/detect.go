package files

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

type category int

const (
	catUnknown category = iota
	catText
	catHTML
	catFeed
	catPDF
	catImage
)

var extTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".json":     "application/json",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".xml":      "application/xml",
	".log":      "text/plain",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".java":     "text/x-java",
	".kt":       "text/x-kotlin",
	".js":       "text/javascript",
	".ts":       "text/x-typescript",
	".sql":      "application/sql",
	".sh":       "text/x-shellscript",
	".html":     "text/html",
	".htm":      "text/html",
	".rss":      "application/rss+xml",
	".atom":     "application/atom+xml",
	".pdf":      "application/pdf",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".gif":      "image/gif",
	".webp":     "image/webp",
}

// detectMIME prefers the declared type, then the extension, then sniffing.
// Generic declared types such as application/octet-stream are ignored.
func detectMIME(name, declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" &&
		mt != "application/octet-stream" && mt != "binary/octet-stream" {
		return strings.ToLower(mt)
	}
	if mt, ok := extTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func categorize(mt string) category {
	switch {
	case mt == "application/pdf":
		return catPDF
	case mt == "text/html" || mt == "application/xhtml+xml":
		return catHTML
	case mt == "application/rss+xml" || mt == "application/atom+xml" || mt == "application/feed+json":
		return catFeed
	case mt == "image/png" || mt == "image/jpeg" || mt == "image/gif" || mt == "image/webp":
		return catImage
	case strings.HasPrefix(mt, "text/"):
		return catText
	case mt == "application/json" || mt == "application/xml" || mt == "application/yaml" ||
		mt == "application/x-yaml" || mt == "application/sql" || mt == "application/javascript":
		return catText
	}
	return catUnknown
}
