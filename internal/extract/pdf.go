package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFFallbackText replaces the text of any PDF that cannot be decoded.
const PDFFallbackText = "PDF text extraction failed. Please try uploading a different format or ensure the PDF is not password protected."

var disablePDFConfigDir sync.Once

func (e *Extractor) extractPDF(raw []byte) Result {
	res := Result{Method: "pdf-text"}

	pages, err := pdfPageCount(raw)
	if err != nil {
		// pdfcpu is stricter than the text decoder; keep going.
		res.Warnings = append(res.Warnings, "page count: "+err.Error())
		e.logger.Warn("extract.pdf.page_count_failed", "err", err)
	} else {
		res.Pages = pages
	}

	if e.cfg.MaxPDFPages > 0 && pages > e.cfg.MaxPDFPages {
		return e.pdfFallback(res, fmt.Errorf("%d pages exceeds limit %d", pages, e.cfg.MaxPDFPages))
	}

	text, err := e.decodePDF(raw)
	if err != nil {
		return e.pdfFallback(res, err)
	}
	if strings.TrimSpace(text) == "" {
		return e.pdfFallback(res, fmt.Errorf("no text layer"))
	}
	res.Text = text
	return res
}

func (e *Extractor) pdfFallback(res Result, cause error) Result {
	e.logger.Warn("extract.pdf.fallback", "err", cause)
	res.Text = PDFFallbackText
	res.Method = "pdf-fallback"
	res.Degraded = true
	res.Warnings = append(res.Warnings, cause.Error())
	return res
}

func pdfPageCount(raw []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	disablePDFConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(raw), conf)
}

// pdfPlainText decodes the text layer. The decoder panics on some malformed
// inputs, so panics become errors.
func pdfPlainText(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decoder panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
