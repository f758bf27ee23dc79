package extract

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)

	w, err = zw.Create(docxBodyPart)
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`+
		` xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxParagraphsInOrder(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>CS 101</w:t></w:r><w:r><w:t xml:space="preserve"> Syllabus</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Week 1:</w:t><w:tab/><w:t>Intro</w:t></w:r></w:p>`+
			`<w:p/>`+
			`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Office hours</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)

	text, err := Text("docx", data)
	require.NoError(t, err)
	assert.Equal(t, "CS 101 Syllabus\nWeek 1:\tIntro\n\nOffice hours", text)
}

func TestDocxTextBoxKeepsAnchorParagraph(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>Instructor: Dr. Smith</w:t></w:r>`+
			`<w:r><mc:AlternateContent><mc:Choice Requires="wps"><w:drawing><w:txbxContent>`+
			`<w:p><w:r><w:t>Box</w:t></w:r></w:p>`+
			`</w:txbxContent></w:drawing></mc:Choice>`+
			`<mc:Fallback><w:pict><w:txbxContent><w:p><w:r><w:t>Box</w:t></w:r></w:p></w:txbxContent></w:pict></mc:Fallback>`+
			`</mc:AlternateContent></w:r>`+
			`<w:r><w:t xml:space="preserve"> Room 204</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Next</w:t></w:r></w:p>`)

	text, err := Text("docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Instructor: Dr. Smith Room 204\nBox\nNext", text)
}

func TestDocxIgnoresTabStopDefinitions(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="left" w:pos="1440"/></w:tabs></w:pPr>`+
			`<w:r><w:t>Week 1</w:t><w:tab/><w:t>Intro</w:t></w:r></w:p>`)

	text, err := Text("docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Week 1\tIntro", text)
}

func TestDocxRejectsOversizedBody(t *testing.T) {
	old := maxDocumentXMLBytes
	maxDocumentXMLBytes = 1024
	t.Cleanup(func() { maxDocumentXMLBytes = old })

	body := strings.Repeat(`<w:p><w:r><w:t>lorem ipsum</w:t></w:r></w:p>`, 200)
	_, err := Text("docx", buildDocx(t, body))
	require.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestDocxWithoutBody(t *testing.T) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Text("docx", buf.Bytes())
	require.Error(t, err)
}

func TestDocxRejectsNonZip(t *testing.T) {
	_, err := Text("docx", []byte("plain text, not a zip"))
	require.Error(t, err)
}

func TestTextUnsupported(t *testing.T) {
	_, err := Text("pdf", []byte("%PDF"))
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestTruncateCountsCharacters(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo wörld", 5))
	assert.Equal(t, "short", Truncate("short", 15000))
	assert.Equal(t, "abc", Truncate("abc", 0))

	long := strings.Repeat("a", DefaultMaxChars+10)
	assert.Len(t, Truncate(long, DefaultMaxChars), DefaultMaxChars)
}

func TestExtAndSupported(t *testing.T) {
	assert.Equal(t, "pdf", Ext("Syllabus.PDF"))
	assert.Equal(t, "docx", Ext("notes.final.docx"))
	assert.Equal(t, "", Ext("README"))
	assert.Equal(t, "", Ext("trailing."))

	for _, ext := range []string{"pdf", "doc", "docx", "txt"} {
		assert.True(t, Supported(ext), ext)
	}
	for _, ext := range []string{"exe", "png", "", "docm"} {
		assert.False(t, Supported(ext), ext)
	}
	assert.True(t, ExtractsLocally("doc"))
	assert.False(t, ExtractsLocally("txt"))
	assert.Equal(t, "application/pdf", MIMEType("pdf"))
}

// buildWord97 lays out a WordDocument stream with one cp1252 piece and one
// UTF-16 piece, and a 1Table stream holding the Clx.
func buildWord97(t *testing.T) (word, table []byte) {
	t.Helper()
	word = make([]byte, 0x400)
	binary.LittleEndian.PutUint16(word[0:], fibIdent)
	binary.LittleEndian.PutUint16(word[fibFlagsOffset:], flagWhichTable)

	compressed := []byte("Caf\xe9 1\r")
	copy(word[0x200:], compressed)

	wide := utf16.Encode([]rune("Exam\r"))
	for i, u := range wide {
		binary.LittleEndian.PutUint16(word[0x300+i*2:], u)
	}

	cps := []uint32{0, uint32(len(compressed)), uint32(len(compressed) + len(wide))}
	binary.LittleEndian.PutUint32(word[fibCcpTextOffset:], cps[2])

	plc := &bytes.Buffer{}
	for _, cp := range cps {
		require.NoError(t, binary.Write(plc, binary.LittleEndian, cp))
	}
	for _, fc := range []uint32{(0x200 * 2) | fcCompressed, 0x300} {
		pcd := make([]byte, 8)
		binary.LittleEndian.PutUint32(pcd[2:], fc)
		plc.Write(pcd)
	}

	clx := &bytes.Buffer{}
	clx.Write([]byte{0x01, 0x02, 0x00, 0xAA, 0xBB})
	clx.WriteByte(0x02)
	require.NoError(t, binary.Write(clx, binary.LittleEndian, uint32(plc.Len())))
	clx.Write(plc.Bytes())

	binary.LittleEndian.PutUint32(word[fibFcClxOffset:], 0)
	binary.LittleEndian.PutUint32(word[fibLcbClxOffset:], uint32(clx.Len()))
	return word, clx.Bytes()
}

func TestDecodeWord97PieceTable(t *testing.T) {
	word, table := buildWord97(t)

	text, err := decodeWord97(word, nil, table)
	require.NoError(t, err)
	assert.Equal(t, "Café 1\nExam", text)
}

func TestDecodeWord97WrongTableStream(t *testing.T) {
	word, table := buildWord97(t)

	_, err := decodeWord97(word, table, nil)
	assert.ErrorIs(t, err, errBadDoc)
}

func TestDecodeWord97RejectsBadIdent(t *testing.T) {
	word, table := buildWord97(t)
	word[0] = 0

	_, err := decodeWord97(word, nil, table)
	assert.ErrorIs(t, err, errBadDoc)
}

func TestDocRejectsNonCompoundFile(t *testing.T) {
	_, err := Text("doc", []byte("not an OLE container"))
	require.Error(t, err)
}
