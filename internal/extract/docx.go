package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wpTag matches a whole paragraph, with or without attributes.
	wpTag = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>.
	wtTag = regexp.MustCompile(`<w:t(?: [^>]*)?>([^<]*)</w:t>`)
	// mainPartRe finds the main document part in [Content_Types].xml in either attribute order.
	mainPartRe = regexp.MustCompile(`<Override[^>]*(?:PartName="([^"]+)"[^>]*ContentType="` + regexp.QuoteMeta(docxMainContentType) +
		`"|ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]*PartName="([^"]+)")`)
)

func readZipFile(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		return data, true, err
	}
	return nil, false, nil
}

// docxMainPart returns the main document path declared in [Content_Types].xml,
// or word/document.xml when none is declared.
func docxMainPart(zr *zip.Reader) string {
	data, ok, err := readZipFile(zr, contentTypesPath)
	if !ok || err != nil {
		return docxDocumentXMLPath
	}
	m := mainPartRe.FindSubmatch(data)
	if m == nil {
		return docxDocumentXMLPath
	}
	part := string(m[1])
	if part == "" {
		part = string(m[2])
	}
	return strings.TrimPrefix(part, "/")
}

// extractDOCX extracts the text of every non-empty paragraph of a .docx file, one
// paragraph per block. Runs within a paragraph are concatenated as Word renders them.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	part := docxMainPart(zr)
	docXML, ok, err := readZipFile(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: read %s: %w", part, err)
	}
	if !ok {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}

	var paragraphs []string
	for _, p := range wpTag.FindAll(docXML, -1) {
		var b strings.Builder
		for _, run := range wtTag.FindAllSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(string(run[1])))
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
