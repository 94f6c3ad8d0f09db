package store

import (
	"mime"
	"path/filepath"

	"github.com/wailsapp/mimetype"
)

// ContentType guesses a content type from the extension of a file name,
// and from the content when the extension is unknown
func ContentType(name string, content []byte) string {
	if contentType := mime.TypeByExtension(filepath.Ext(name)); contentType != "" {
		return contentType
	}
	return mimetype.Detect(content).String()
}
