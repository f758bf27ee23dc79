package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// maxDocumentXMLBytes bounds the decompressed body part.
var maxDocumentXMLBytes int64 = 32 << 20

// ErrDocumentTooLarge is returned when the decompressed body exceeds maxDocumentXMLBytes.
var ErrDocumentTooLarge = errors.New("document body too large")

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx container: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		if f.UncompressedSize64 > uint64(maxDocumentXMLBytes) {
			return "", ErrDocumentTooLarge
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		defer rc.Close()

		// the stream is capped independently of the header size
		lr := &io.LimitedReader{R: rc, N: maxDocumentXMLBytes + 1}
		text, err := docxParagraphs(lr)
		if lr.N <= 0 {
			return "", ErrDocumentTooLarge
		}
		return text, err
	}
	return "", fmt.Errorf("docx container has no %s", docxBodyPart)
}

// docxParagraphs collects the text of every w:p in the order the paragraphs
// open. A paragraph nested in a text box gets its own line after the
// paragraph that anchors it. mc:Fallback duplicates mc:Choice and is skipped.
func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []*paraBuf
		runDepth   int
		inText     bool
	)
	top := func() *paraBuf {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Fallback":
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("parse document xml: %w", err)
				}
			case "p":
				paragraphs = append(paragraphs, "")
				open = append(open, &paraBuf{index: len(paragraphs) - 1, runDepth: runDepth})
				runDepth = 0
			case "r":
				runDepth++
			case "t":
				inText = true
			case "tab":
				if p := top(); p != nil && runDepth > 0 {
					p.text.WriteByte('\t')
				}
			case "br", "cr":
				if p := top(); p != nil && runDepth > 0 {
					p.text.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "p":
				if p := top(); p != nil {
					paragraphs[p.index] = p.text.String()
					runDepth = p.runDepth
					open = open[:len(open)-1]
				}
			}
		case xml.CharData:
			if p := top(); p != nil && inText {
				p.text.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// paraBuf is an open paragraph and the run depth of its parent.
type paraBuf struct {
	index    int
	runDepth int
	text     strings.Builder
}
