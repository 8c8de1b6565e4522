package ingest

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/legal-simplifier/constants"
)

// AllowedExt checks if a file extension maps to an accepted format.
func AllowedExt(ext string) bool {
	return constants.MapExtToFormat(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// DetectFormat sniffs content and returns the normalized MIME type.
func DetectFormat(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return constants.NormalizeFormat(mimetype.Detect(data).String())
}

// resolveFormat picks the declared format, else an accepted sniffed one, else
// the one implied by the file extension.
func resolveFormat(declared, detected, filename string) string {
	if f := constants.NormalizeFormat(declared); f != "" {
		return f
	}
	if constants.IsAllowedFormat(detected) {
		return detected
	}
	return constants.MapExtToFormat(filepath.Ext(filename))
}
