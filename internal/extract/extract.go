// Package extract turns uploaded word-processor documents into plain text.
// PDF and plain-text uploads are not read locally; their bytes go to the AI
// service unchanged.
package extract

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxChars caps extracted text before it is embedded in a prompt.
const DefaultMaxChars = 15000

// ErrUnsupported is returned for extensions outside the allow-list.
var ErrUnsupported = errors.New("unsupported document type")

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
}

// Ext normalises a filename's extension: lowercase, without the dot.
func Ext(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// Supported reports whether ext is one of pdf, doc, docx, txt.
func Supported(ext string) bool {
	_, ok := mimeTypes[ext]
	return ok
}

// MIMEType returns the media type sent with the raw upload.
func MIMEType(ext string) string {
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

// ExtractsLocally reports whether text is pulled out before calling the AI
// service (doc, docx) rather than uploading the file itself (pdf, txt).
func ExtractsLocally(ext string) bool {
	return ext == "doc" || ext == "docx"
}

// Text extracts paragraph text in document order, newline-joined.
func Text(ext string, data []byte) (string, error) {
	switch ext {
	case "docx":
		return docxText(data)
	case "doc":
		return docText(data)
	default:
		return "", fmt.Errorf("%w: %q has no local extractor", ErrUnsupported, ext)
	}
}

// Truncate keeps the first max characters. Anything after the cut is dropped.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}
