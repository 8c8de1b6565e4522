package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-simplifier/constants"
)

func newTestExtractor() *Extractor {
	return NewExtractor(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Lease Agreement</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">The Lessor </w:t></w:r><w:r><w:t>shall provide notice.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Term:</w:t><w:tab/><w:t>12 months</w:t><w:br/><w:t>Renewable.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractPlainText(t *testing.T) {
	e := newTestExtractor()

	t.Run("Should round-trip plain text unchanged", func(t *testing.T) {
		in := "Line one.\r\n  Line two.\tTabbed."
		res, err := e.Extract(context.Background(), []byte(in), constants.FormatPlainText)
		require.NoError(t, err)
		assert.Equal(t, in, res.Text)
		assert.False(t, res.Degraded)
	})

	t.Run("Should accept format parameters", func(t *testing.T) {
		res, err := e.Extract(context.Background(), []byte("hi"), "Text/Plain; charset=utf-8")
		require.NoError(t, err)
		assert.Equal(t, "hi", res.Text)
	})

	t.Run("Should warn but keep invalid UTF-8", func(t *testing.T) {
		in := []byte{'a', 0xff, 'b'}
		res, err := e.Extract(context.Background(), in, constants.FormatPlainText)
		require.NoError(t, err)
		assert.Equal(t, string(in), res.Text)
		assert.NotEmpty(t, res.Warnings)
	})
}

func TestExtractUnsupported(t *testing.T) {
	t.Run("Should return ExtractionError for unknown formats", func(t *testing.T) {
		_, err := newTestExtractor().Extract(context.Background(), []byte("x"), "image/png")
		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestExtractPDF(t *testing.T) {
	t.Run("Should fall back on corrupt PDFs without error", func(t *testing.T) {
		res, err := newTestExtractor().Extract(context.Background(), []byte("%PDF-1.4 garbage"), constants.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, PDFFallbackText, res.Text)
		assert.True(t, res.Degraded)
		assert.Equal(t, "pdf-fallback", res.Method)
	})

	t.Run("Should use decoded text when available", func(t *testing.T) {
		e := newTestExtractor()
		e.decodePDF = func([]byte) (string, error) { return "Buyer shall pay.", nil }
		res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), constants.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, "Buyer shall pay.", res.Text)
		assert.False(t, res.Degraded)
	})

	t.Run("Should fall back on an empty text layer", func(t *testing.T) {
		e := newTestExtractor()
		e.decodePDF = func([]byte) (string, error) { return " \n\t", nil }
		res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), constants.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, PDFFallbackText, res.Text)
		assert.True(t, res.Degraded)
	})

	t.Run("Should fall back on decoder errors", func(t *testing.T) {
		e := newTestExtractor()
		e.decodePDF = func([]byte) (string, error) { return "", errors.New("encrypted") }
		res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), constants.FormatPDF)
		require.NoError(t, err)
		assert.True(t, res.Degraded)
	})

	t.Run("Should convert decoder panics into errors", func(t *testing.T) {
		_, err := pdfPlainText(nil)
		assert.Error(t, err)
	})
}

func TestExtractDOCX(t *testing.T) {
	e := newTestExtractor()

	t.Run("Should extract paragraphs tabs and breaks", func(t *testing.T) {
		raw := buildDocx(t, map[string]string{"word/document.xml": documentXML})
		res, err := e.Extract(context.Background(), raw, constants.FormatDOCX)
		require.NoError(t, err)
		assert.Equal(t, "Lease Agreement\nThe Lessor shall provide notice.\nTerm:\t12 months\nRenewable.", res.Text)
		assert.Equal(t, "docx-xml", res.Method)
	})

	t.Run("Should fail on non-zip input", func(t *testing.T) {
		_, err := e.Extract(context.Background(), []byte("not a zip"), constants.FormatDOCX)
		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
		assert.Equal(t, constants.FormatDOCX, xerr.Format)
	})

	t.Run("Should fail when the body part is missing", func(t *testing.T) {
		raw := buildDocx(t, map[string]string{"word/styles.xml": "<x/>"})
		_, err := e.Extract(context.Background(), raw, constants.FormatDOCX)
		assert.ErrorIs(t, err, errNoDocxBody)
	})

	t.Run("Should fail on malformed XML", func(t *testing.T) {
		raw := buildDocx(t, map[string]string{"word/document.xml": "<w:document><w:body>"})
		_, err := e.Extract(context.Background(), raw, constants.FormatDOCX)
		var xerr *ExtractionError
		assert.ErrorAs(t, err, &xerr)
	})
}

func TestExtractMSWord(t *testing.T) {
	t.Run("Should decode a Word 97 compound file", func(t *testing.T) {
		raw, err := os.ReadFile(filepath.Join("testdata", "notice.doc"))
		require.NoError(t, err)

		res, err := newTestExtractor().Extract(context.Background(), raw, constants.FormatMSWord)
		require.NoError(t, err)
		assert.Equal(t, "doc-piece-table", res.Method)
		assert.Equal(t, constants.FormatMSWord, res.Format)
		assert.Equal(t, "Acme Inc. shall deliver goods by 01/12/2024.\nLessor must pay the café rent.", res.Text)
	})

	t.Run("Should fail on non compound files", func(t *testing.T) {
		_, err := newTestExtractor().Extract(context.Background(), []byte("plain bytes"), constants.FormatMSWord)
		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
		assert.ErrorIs(t, err, errNotWordDocument)
	})
}

func TestParseFIB(t *testing.T) {
	word := make([]byte, 320)
	binary.LittleEndian.PutUint16(word[0:], fibIdent)
	binary.LittleEndian.PutUint16(word[0x0A:], fibFlagWhichTable)
	binary.LittleEndian.PutUint16(word[32:], 0)  // csw
	binary.LittleEndian.PutUint16(word[34:], 0)  // cslw
	binary.LittleEndian.PutUint16(word[36:], 93) // cbRgFcLcb
	binary.LittleEndian.PutUint32(word[38+33*8:], 1234)
	binary.LittleEndian.PutUint32(word[38+33*8+4:], 56)

	t.Run("Should locate the clx", func(t *testing.T) {
		table, fc, lcb, err := parseFIB(word)
		require.NoError(t, err)
		assert.Equal(t, "1Table", table)
		assert.Equal(t, uint32(1234), fc)
		assert.Equal(t, uint32(56), lcb)
	})

	t.Run("Should reject encrypted documents", func(t *testing.T) {
		enc := bytes.Clone(word)
		binary.LittleEndian.PutUint16(enc[0x0A:], fibFlagEncrypted)
		_, _, _, err := parseFIB(enc)
		assert.ErrorIs(t, err, errEncryptedDoc)
	})

	t.Run("Should reject a bad signature", func(t *testing.T) {
		bad := bytes.Clone(word)
		bad[0] = 0
		_, _, _, err := parseFIB(bad)
		assert.ErrorIs(t, err, errNotWordDocument)
	})
}

func pieceTable(cps []uint32, fcs []uint32) []byte {
	n := len(fcs)
	lcb := 4*(n+1) + 8*n
	clx := make([]byte, 5+lcb)
	clx[0] = 0x02
	binary.LittleEndian.PutUint32(clx[1:], uint32(lcb))
	plc := clx[5:]
	for i, cp := range cps {
		binary.LittleEndian.PutUint32(plc[i*4:], cp)
	}
	pcds := plc[(n+1)*4:]
	for i, fc := range fcs {
		binary.LittleEndian.PutUint32(pcds[i*8+2:], fc)
	}
	return clx
}

func TestDecodePieces(t *testing.T) {
	t.Run("Should decode compressed and unicode pieces", func(t *testing.T) {
		word := make([]byte, 200)
		copy(word[100:], []byte("Caf\xe9\r")) // cp1252
		utf16 := []byte{'o', 0, 'k', 0}
		copy(word[150:], utf16)

		clx := append([]byte{0x01, 0x02, 0x00, 0xAA, 0xBB}, pieceTable(
			[]uint32{0, 5, 7},
			[]uint32{200 | compressedFlag, 150},
		)...)

		text, err := decodePieces(word, clx)
		require.NoError(t, err)
		assert.Equal(t, "Café\rok", text)
		assert.Equal(t, "Café\nok", cleanWordText(text))
	})

	t.Run("Should reject out of range pieces", func(t *testing.T) {
		word := make([]byte, 10)
		_, err := decodePieces(word, pieceTable([]uint32{0, 50}, []uint32{0}))
		assert.ErrorIs(t, err, errCorruptDoc)
	})

	t.Run("Should reject a missing piece table", func(t *testing.T) {
		_, err := decodePieces(nil, []byte{0x05})
		assert.ErrorIs(t, err, errCorruptDoc)
	})

	t.Run("Should reject negative prc sizes", func(t *testing.T) {
		for _, clx := range [][]byte{
			{0x01, 0xFC, 0xFF, 0x00}, // -4 steps before the start
			{0x01, 0xFD, 0xFF},       // -3 never advances
			{0x01, 0x00, 0x00, 0x02}, // zero
			{0x01, 0xA3, 0x3F, 0x00}, // above the grpprl limit
		} {
			done := make(chan error, 1)
			go func() {
				_, err := decodePieces(nil, clx)
				done <- err
			}()
			select {
			case err := <-done:
				assert.ErrorIs(t, err, errCorruptDoc, "clx % x", clx)
			case <-time.After(2 * time.Second):
				t.Fatalf("decodePieces did not return for clx % x", clx)
			}
		}
	})
}

func TestDecodeOffice(t *testing.T) {
	t.Run("Should turn decoder panics into corrupt document errors", func(t *testing.T) {
		_, err := decodeOffice(func([]byte) (Result, error) {
			panic("index out of range [-1]")
		}, nil)
		assert.ErrorIs(t, err, errCorruptDoc)
	})
}

func TestExtractCancelled(t *testing.T) {
	t.Run("Should honour context cancellation while waiting for a slot", func(t *testing.T) {
		e := NewExtractor(Config{MaxConcurrent: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, e.sem.Acquire(context.Background(), 1))
		defer e.sem.Release(1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Extract(ctx, []byte("x"), constants.FormatPlainText)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
