// Package docgen converts LLM-generated text into document bytes: markdown
// into DOCX or PDF, semicolon-delimited rows into XLSX.
package docgen

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/docsmith-core/server/internal/assistant/model"
	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// Generator renders textual content into a target file format.
type Generator interface {
	Generate(fileType model.FileType, content string) ([]byte, error)
}

type generator struct{}

// New returns the standard generator.
func New() Generator {
	return generator{}
}

// Generate dispatches on the target format. DOCX and PDF targets expect
// markdown-structured content; XLSX expects one row per line with ';' between
// columns.
func (generator) Generate(fileType model.FileType, content string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch fileType {
	case model.FileTypeDocx:
		out, err = writeDocx(ParseMarkdown(content))
	case model.FileTypeXlsx:
		out, err = writeXlsx(splitRows(content))
	case model.FileTypePdf:
		out, err = writePdf(ParseMarkdown(content))
	default:
		return nil, errx.New(fmt.Errorf("file type %q", fileType),
			http.StatusUnprocessableEntity, "unsupported file type").WithCode(errx.CodeValidationError)
	}
	if err != nil {
		logx.Error().Err(err).Str("file_type", string(fileType)).Msg("Document generation failed")
		return nil, errx.New(err, http.StatusInternalServerError,
			fmt.Sprintf("failed to generate %s file", fileType)).WithCode(errx.CodeUnknownError)
	}
	return out, nil
}

// splitRows drops blank lines and code fences the LLM may wrap rows in.
func splitRows(content string) []string {
	var rows []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}

// DefaultFilename names a created document when no suggestion is available,
// keyed to the tail of the conversation ID.
func DefaultFilename(conversationID string, fileType model.FileType) string {
	suffix := conversationID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("document_%s.%s", suffix, fileType)
}
