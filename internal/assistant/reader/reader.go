// Package reader extracts question-answerable text from stored documents and
// classifies its structural shape for prompt framing.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/docsmith-core/server/internal/assistant/model"
	"github.com/docsmith-core/server/internal/assistant/template"
	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

type Reader struct {
	store model.DocumentStore
}

var _ model.FileReader = (*Reader)(nil)

func New(store model.DocumentStore) *Reader {
	return &Reader{store: store}
}

// Read fetches the stored file and extracts its text. Unsupported or
// unparseable formats fail with a VALIDATION_ERROR; a missing file surfaces
// the store's DOCUMENT_NOT_FOUND.
func (r *Reader) Read(ctx context.Context, fileRef string) (*model.FileContent, error) {
	content, meta, err := r.store.Get(ctx, fileRef)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(meta.Filename))
	switch ext {
	case ".docx":
		text, err := template.PartText(content)
		if err != nil {
			return nil, err
		}
		return &model.FileContent{Content: text, ContentType: model.ContentTypeDocx, Filename: meta.Filename}, nil

	case ".xlsx", ".xls":
		table, err := excelTable(content)
		if err != nil {
			logx.Error().Err(err).Str("filename", meta.Filename).Msg("Failed to parse spreadsheet")
			return nil, errx.New(err, http.StatusUnprocessableEntity,
				fmt.Sprintf("could not parse spreadsheet '%s'", meta.Filename)).WithCode(errx.CodeValidationError)
		}
		return &model.FileContent{Content: table, ContentType: model.ContentTypeExcel, Filename: meta.Filename}, nil

	case ".csv":
		return &model.FileContent{Content: string(content), ContentType: model.ContentTypeCSV, Filename: meta.Filename}, nil

	case ".json":
		return &model.FileContent{Content: string(content), ContentType: model.ContentTypeJSON, Filename: meta.Filename}, nil

	case ".txt", ".md", "":
		return &model.FileContent{Content: string(content), ContentType: model.ContentTypeText, Filename: meta.Filename}, nil

	default:
		return nil, errx.New(fmt.Errorf("extension %q", ext), http.StatusUnprocessableEntity,
			fmt.Sprintf("file '%s' is not a supported type (DOCX, XLSX, CSV, JSON, TXT)", meta.Filename)).WithCode(errx.CodeValidationError)
	}
}

// excelTable renders the first sheet as a pipe table so the LLM sees aligned
// rows and columns.
func excelTable(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, len(row))
			for j := range sep {
				sep[j] = "---"
			}
			b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
