package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Word 97-2003 binary layout constants (MS-DOC).
const (
	fibIdent          = 0xA5EC
	fibFlagEncrypted  = 0x0100
	fibFlagWhichTable = 0x0200
	fibBaseSize       = 32
	fibClxPairIndex   = 33
	pcdSize           = 8
	compressedFlag    = 0x40000000
	maxGrpprlSize     = 0x3FA2
)

var (
	errNotWordDocument = errors.New("not a Word 97-2003 document")
	errEncryptedDoc    = errors.New("document is encrypted")
	errCorruptDoc      = errors.New("corrupt document structure")
)

func (e *Extractor) extractDOC(raw []byte) (Result, error) {
	res := Result{Method: "doc-piece-table"}
	streams, err := readCompoundStreams(raw, "WordDocument", "0Table", "1Table")
	if err != nil {
		return res, err
	}
	word, ok := streams["WordDocument"]
	if !ok {
		return res, errNotWordDocument
	}
	tableName, fcClx, lcbClx, err := parseFIB(word)
	if err != nil {
		return res, err
	}
	table, ok := streams[tableName]
	if !ok {
		return res, fmt.Errorf("%w: missing %s stream", errCorruptDoc, tableName)
	}
	if uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return res, fmt.Errorf("%w: clx out of range", errCorruptDoc)
	}
	text, err := decodePieces(word, table[fcClx:fcClx+lcbClx])
	if err != nil {
		return res, err
	}
	res.Text = cleanWordText(text)
	res.Pages = 1
	return res, nil
}

// readCompoundStreams returns the named streams of an OLE2 compound file.
func readCompoundStreams(raw []byte, names ...string) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotWordDocument, err)
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make(map[string][]byte)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if _, ok := want[entry.Name]; !ok {
			continue
		}
		buf, rerr := io.ReadAll(entry)
		if rerr != nil {
			return nil, fmt.Errorf("read %s stream: %w", entry.Name, rerr)
		}
		out[entry.Name] = buf
	}
	return out, nil
}

// parseFIB locates the Clx in the table stream from the File Information Block.
func parseFIB(word []byte) (table string, fcClx, lcbClx uint32, err error) {
	if len(word) < fibBaseSize+2 {
		return "", 0, 0, fmt.Errorf("%w: short FIB", errCorruptDoc)
	}
	if binary.LittleEndian.Uint16(word[0:]) != fibIdent {
		return "", 0, 0, errNotWordDocument
	}
	flags := binary.LittleEndian.Uint16(word[0x0A:])
	if flags&fibFlagEncrypted != 0 {
		return "", 0, 0, errEncryptedDoc
	}
	table = "0Table"
	if flags&fibFlagWhichTable != 0 {
		table = "1Table"
	}

	off := fibBaseSize
	read16 := func() (int, bool) {
		if off+2 > len(word) {
			return 0, false
		}
		v := int(binary.LittleEndian.Uint16(word[off:]))
		off += 2
		return v, true
	}
	csw, ok := read16()
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: truncated FIB", errCorruptDoc)
	}
	off += csw * 2
	cslw, ok := read16()
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: truncated FIB", errCorruptDoc)
	}
	off += cslw * 4
	cbRgFcLcb, ok := read16()
	if !ok || cbRgFcLcb <= fibClxPairIndex {
		return "", 0, 0, fmt.Errorf("%w: truncated FIB", errCorruptDoc)
	}
	pair := off + fibClxPairIndex*8
	if pair+8 > len(word) {
		return "", 0, 0, fmt.Errorf("%w: truncated FIB", errCorruptDoc)
	}
	fcClx = binary.LittleEndian.Uint32(word[pair:])
	lcbClx = binary.LittleEndian.Uint32(word[pair+4:])
	if lcbClx == 0 {
		return "", 0, 0, fmt.Errorf("%w: empty clx", errCorruptDoc)
	}
	return table, fcClx, lcbClx, nil
}

// decodePieces walks the piece table in clx and concatenates each piece's
// characters from the WordDocument stream.
func decodePieces(word, clx []byte) (string, error) {
	pos := 0
	for pos < len(clx) && clx[pos] == 0x01 { // Prc entries
		if pos+3 > len(clx) {
			return "", fmt.Errorf("%w: truncated prc", errCorruptDoc)
		}
		cb := int(int16(binary.LittleEndian.Uint16(clx[pos+1:])))
		if cb <= 0 || cb > maxGrpprlSize {
			return "", fmt.Errorf("%w: prc size %d", errCorruptDoc, cb)
		}
		pos += 3 + cb
	}
	if pos+5 > len(clx) || clx[pos] != 0x02 {
		return "", fmt.Errorf("%w: missing piece table", errCorruptDoc)
	}
	lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
	plc := clx[pos+5:]
	if lcb < 4 || lcb > len(plc) || (lcb-4)%12 != 0 {
		return "", fmt.Errorf("%w: bad piece table size", errCorruptDoc)
	}
	n := (lcb - 4) / 12
	cps := make([]uint32, n+1)
	for i := range cps {
		cps[i] = binary.LittleEndian.Uint32(plc[i*4:])
	}
	pcds := plc[(n+1)*4:]

	cp1252 := charmap.Windows1252.NewDecoder()
	utf16 := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder()

	var b strings.Builder
	for i := 0; i < n; i++ {
		if cps[i+1] < cps[i] {
			return "", fmt.Errorf("%w: piece %d out of order", errCorruptDoc, i)
		}
		chars := int(cps[i+1] - cps[i])
		fc := binary.LittleEndian.Uint32(pcds[i*pcdSize+2:])

		var (
			start, size int
			decode      func([]byte) ([]byte, error)
		)
		if fc&compressedFlag != 0 {
			start, size = int((fc&^compressedFlag)/2), chars
			decode = cp1252.Bytes
		} else {
			start, size = int(fc), chars*2
			decode = utf16.Bytes
		}
		if start < 0 || start+size > len(word) {
			return "", fmt.Errorf("%w: piece %d out of range", errCorruptDoc, i)
		}
		out, err := decode(word[start : start+size])
		if err != nil {
			return "", fmt.Errorf("decode piece %d: %w", i, err)
		}
		b.Write(out)
	}
	return b.String(), nil
}

// cleanWordText maps paragraph marks to newlines and drops field and
// control characters.
func cleanWordText(s string) string {
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimRight(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == 0x0B { // vertical tab is a manual line break
			return '\n'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s), "\n")
}
