package constants

import "strings"

// Declared formats accepted at upload.
const (
	FormatPlainText = "text/plain"
	FormatPDF       = "application/pdf"
	FormatMSWord    = "application/msword"
	FormatDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// MaxUploadBytes is the default upload bound (15MB).
const MaxUploadBytes = 15 * 1024 * 1024

// AllowedFormats holds the declared formats the pipeline can extract.
var AllowedFormats = map[string]struct{}{
	FormatPlainText: {},
	FormatPDF:       {},
	FormatMSWord:    {},
	FormatDOCX:      {},
}

var extToFormat = map[string]string{
	"txt":  FormatPlainText,
	"text": FormatPlainText,
	"pdf":  FormatPDF,
	"doc":  FormatMSWord,
	"docx": FormatDOCX,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeFormat lowercases a MIME-like tag and drops parameters ("; charset=utf-8").
func NormalizeFormat(format string) string {
	if i := strings.IndexByte(format, ';'); i >= 0 {
		format = format[:i]
	}
	return strings.ToLower(strings.TrimSpace(format))
}

// IsAllowedFormat reports whether the declared format is accepted.
func IsAllowedFormat(format string) bool {
	_, ok := AllowedFormats[NormalizeFormat(format)]
	return ok
}

// MapExtToFormat maps a file extension to its declared format, or "" when unknown.
func MapExtToFormat(ext string) string {
	return extToFormat[NormalizeExt(ext)]
}
