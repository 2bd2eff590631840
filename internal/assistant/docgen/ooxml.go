package docgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// Minimal WordprocessingML package writer. The repository already speaks
// OOXML directly in the template engine, so generated documents are written
// the same way: a zip of the mandatory parts with direct run formatting for
// headings, lists and code.

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// heading sizes in half-points, indexed by heading level 1..4
var headingSizes = []int{0, 32, 28, 26, 24}

var ooxmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func writeDocx(blocks []Block) ([]byte, error) {
	var body strings.Builder
	counters := map[int]int{}
	for _, blk := range blocks {
		if blk.Kind != BlockListItem {
			// any non-list block ends the list and restarts numbering
			counters = map[int]int{}
		}
		body.WriteString(paragraphXML(blk, counters))
	}

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body.String() + `</w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", document},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("write part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx archive: %w", err)
	}
	return buf.Bytes(), nil
}

func paragraphXML(blk Block, counters map[int]int) string {
	text := ooxmlEscaper.Replace(blk.Text)

	switch blk.Kind {
	case BlockHeading:
		level := blk.Level
		if level < 1 {
			level = 1
		}
		if level >= len(headingSizes) {
			level = len(headingSizes) - 1
		}
		sz := headingSizes[level]
		return fmt.Sprintf(`<w:p><w:r><w:rPr><w:b/><w:sz w:val="%d"/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, sz, text)

	case BlockListItem:
		indent := 360 * blk.Level
		for lvl := range counters {
			if lvl > blk.Level {
				delete(counters, lvl)
			}
		}
		marker := "• "
		if blk.Ordered {
			counters[blk.Level]++
			marker = fmt.Sprintf("%d. ", counters[blk.Level])
		} else {
			delete(counters, blk.Level)
		}
		return fmt.Sprintf(`<w:p><w:pPr><w:ind w:left="%d"/></w:pPr><w:r><w:t xml:space="preserve">%s%s</w:t></w:r></w:p>`, indent, marker, text)

	case BlockCode:
		var b strings.Builder
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(fmt.Sprintf(`<w:p><w:r><w:rPr><w:rFonts w:ascii="Courier New" w:hAnsi="Courier New"/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, line))
		}
		return b.String()

	case BlockRule:
		return `<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`

	default:
		return fmt.Sprintf(`<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, text)
	}
}
