package extract

import "unicode/utf8"

// Plain text round-trips byte for byte.
func (e *Extractor) extractPlain(raw []byte) Result {
	res := Result{Text: string(raw), Method: "plain", Pages: 1}
	if !utf8.Valid(raw) {
		res.Warnings = append(res.Warnings, "input is not valid UTF-8")
		e.logger.Warn("extract.plain.invalid_utf8", "bytes", len(raw))
	}
	return res
}
