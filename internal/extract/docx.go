package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

// paragraph keeps direct runs and hyperlink runs in document order.
type paragraph struct {
	Content []paragraphContent `xml:",any"`
}

type paragraphContent struct {
	XMLName xml.Name
	Text    []textElement `xml:"t"`
	Runs    []run         `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// extractDOCX joins paragraph texts from word/document.xml with newlines.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("word/document.xml not found")
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}

	paras := make([]string, len(doc.Body.Paragraphs))
	for i, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, c := range p.Content {
			switch c.XMLName.Local {
			case "r":
				writeRun(&sb, c.Text)
			case "hyperlink":
				for _, r := range c.Runs {
					writeRun(&sb, r.Text)
				}
			}
		}
		paras[i] = sb.String()
	}
	return strings.Join(paras, "\n"), nil
}

func writeRun(sb *strings.Builder, text []textElement) {
	for _, t := range text {
		sb.WriteString(t.Content)
	}
}
