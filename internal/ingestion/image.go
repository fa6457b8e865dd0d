package ingestion

import (
	"path/filepath"
	"strings"
)

var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageMIMEType infers an image MIME type from the file extension, defaulting
// to image/jpeg.
func ImageMIMEType(path string) string {
	if mt, ok := imageMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}
