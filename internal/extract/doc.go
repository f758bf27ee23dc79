package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Word 97-2003 binary layout offsets (MS-DOC FIB).
const (
	fibIdent         = 0xA5EC
	fibFlagsOffset   = 0x000A
	fibCcpTextOffset = 0x004C
	fibFcClxOffset   = 0x01A2
	fibLcbClxOffset  = 0x01A6
	fibMinSize       = 0x01AA

	flagWhichTable = 0x0200
	flagEncrypted  = 0x0100

	fcCompressed = 0x40000000
)

var errBadDoc = errors.New("malformed word document")

func docText(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open doc container: %w", err)
	}

	streams := map[string][]byte{}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			buf, readErr := io.ReadAll(entry)
			if readErr != nil {
				return "", fmt.Errorf("read %s stream: %w", entry.Name, readErr)
			}
			streams[entry.Name] = buf
		}
	}

	word, ok := streams["WordDocument"]
	if !ok {
		return "", fmt.Errorf("%w: no WordDocument stream", errBadDoc)
	}
	return decodeWord97(word, streams["0Table"], streams["1Table"])
}

// decodeWord97 walks the piece table and returns the main document text.
func decodeWord97(word, table0, table1 []byte) (string, error) {
	if len(word) < fibMinSize {
		return "", fmt.Errorf("%w: fib too short", errBadDoc)
	}
	if binary.LittleEndian.Uint16(word) != fibIdent {
		return "", fmt.Errorf("%w: bad fib identifier", errBadDoc)
	}

	flags := binary.LittleEndian.Uint16(word[fibFlagsOffset:])
	if flags&flagEncrypted != 0 {
		return "", fmt.Errorf("%w: document is encrypted", errBadDoc)
	}
	table := table0
	if flags&flagWhichTable != 0 {
		table = table1
	}
	if table == nil {
		return "", fmt.Errorf("%w: table stream missing", errBadDoc)
	}

	ccpText := int(binary.LittleEndian.Uint32(word[fibCcpTextOffset:]))
	fcClx := int(binary.LittleEndian.Uint32(word[fibFcClxOffset:]))
	lcbClx := int(binary.LittleEndian.Uint32(word[fibLcbClxOffset:]))
	if fcClx < 0 || lcbClx <= 0 || fcClx+lcbClx > len(table) {
		return "", fmt.Errorf("%w: clx out of range", errBadDoc)
	}

	plcPcd, err := pieceTable(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}

	var out strings.Builder
	n := (len(plcPcd) - 4) / 12
	remaining := ccpText
	for i := 0; i < n && remaining > 0; i++ {
		cpStart := int(binary.LittleEndian.Uint32(plcPcd[i*4:]))
		cpEnd := int(binary.LittleEndian.Uint32(plcPcd[(i+1)*4:]))
		count := cpEnd - cpStart
		if count <= 0 {
			continue
		}
		if count > remaining {
			count = remaining
		}
		remaining -= count

		pcd := plcPcd[(n+1)*4+i*8:]
		fc := binary.LittleEndian.Uint32(pcd[2:])

		text, err := decodePiece(word, fc, count)
		if err != nil {
			return "", err
		}
		out.WriteString(text)
	}

	return normalizeWordText(out.String()), nil
}

// pieceTable skips the Prc entries of a Clx and returns the PlcPcd.
func pieceTable(clx []byte) ([]byte, error) {
	pos := 0
	for pos < len(clx) {
		switch clx[pos] {
		case 0x01:
			if pos+3 > len(clx) {
				return nil, fmt.Errorf("%w: truncated prc", errBadDoc)
			}
			size := int(binary.LittleEndian.Uint16(clx[pos+1:]))
			pos += 3 + size
		case 0x02:
			if pos+5 > len(clx) {
				return nil, fmt.Errorf("%w: truncated pcdt", errBadDoc)
			}
			lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
			start := pos + 5
			if lcb < 4 || start+lcb > len(clx) || (lcb-4)%12 != 0 {
				return nil, fmt.Errorf("%w: bad plcpcd size", errBadDoc)
			}
			return clx[start : start+lcb], nil
		default:
			return nil, fmt.Errorf("%w: unexpected clx tag 0x%02x", errBadDoc, clx[pos])
		}
	}
	return nil, fmt.Errorf("%w: pcdt missing", errBadDoc)
}

func decodePiece(word []byte, fc uint32, count int) (string, error) {
	if fc&fcCompressed != 0 {
		offset := int((fc &^ fcCompressed) / 2)
		if offset+count > len(word) {
			return "", fmt.Errorf("%w: compressed piece out of range", errBadDoc)
		}
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(word[offset : offset+count])
		if err != nil {
			return "", fmt.Errorf("decode cp1252 piece: %w", err)
		}
		return string(decoded), nil
	}

	offset := int(fc)
	if offset+count*2 > len(word) {
		return "", fmt.Errorf("%w: unicode piece out of range", errBadDoc)
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(word[offset : offset+count*2])
	if err != nil {
		return "", fmt.Errorf("decode utf-16 piece: %w", err)
	}
	return string(decoded), nil
}

// normalizeWordText maps Word's control characters onto plain text.
func normalizeWordText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\r', '\v', '\f':
			b.WriteByte('\n')
		case 0x07:
			b.WriteByte('\t')
		case '\t', '\n':
			b.WriteRune(r)
		default:
			if r >= 0x20 {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
