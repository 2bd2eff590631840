package template

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/docsmith-core/server/internal/core/error"
)

// renderedPart unzips a rendered document and returns one part's content.
func renderedPart(t *testing.T, doc []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		return buf.String()
	}
	t.Fatalf("part %s not found in rendered document", name)
	return ""
}

func mustRender(t *testing.T, doc []byte, content map[string]any) *RenderResult {
	t.Helper()
	inv, err := ExtractPlaceholders(doc)
	require.NoError(t, err)
	result, err := ValidateAndRender(RenderRequest{
		TemplateName:  "test.docx",
		TemplateBytes: doc,
		Inventory:     inv,
		Content:       content,
	})
	require.NoError(t, err)
	return result
}

func TestRenderScalarSubstitution(t *testing.T) {
	doc := simpleDocx(t, "Report: {{ title }} by {{ author }}")

	result := mustRender(t, doc, map[string]any{"title": "Q3 Review", "author": "Ana"})
	body := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "Report: Q3 Review by Ana")
	assert.NotContains(t, body, "{{")
}

func TestRenderMissingCollectionCoercedToEmpty(t *testing.T) {
	doc := simpleDocx(t,
		"{{ title }}{% for s in sections %}[{{ s.heading }}]{% endfor %}")

	// sections absent entirely
	result := mustRender(t, doc, map[string]any{"title": "Acme Report"})
	body := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "Acme Report")
	assert.NotContains(t, body, "[")

	// sections explicitly null
	result = mustRender(t, doc, map[string]any{"title": "Acme Report", "sections": nil})
	body = renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "Acme Report")
}

func TestRenderMissingScalarNamesTheField(t *testing.T) {
	doc := simpleDocx(t, "{{ title }} and {{ deadline }}")

	inv, err := ExtractPlaceholders(doc)
	require.NoError(t, err)
	_, err = ValidateAndRender(RenderRequest{
		TemplateName:  "test.docx",
		TemplateBytes: doc,
		Inventory:     inv,
		Content:       map[string]any{"title": "something"},
	})
	require.Error(t, err)
	assert.Equal(t, errx.CodeValidationError, errx.CodeOf(err))
	assert.Contains(t, err.Error(), "deadline")
}

func TestRenderLoopExpansion(t *testing.T) {
	doc := simpleDocx(t,
		"{% for s in sections %}[{{ s.heading }}:{{ s.body }}]{% endfor %}")

	result := mustRender(t, doc, map[string]any{
		"sections": []any{
			map[string]any{"heading": "Intro", "body": "first"},
			map[string]any{"heading": "Close", "body": "last"},
		},
	})
	body := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "[Intro:first]")
	assert.Contains(t, body, "[Close:last]")
	assert.Less(t, strings.Index(body, "Intro"), strings.Index(body, "Close"))
}

func TestRenderLoopItemMissingAttributeRendersBlank(t *testing.T) {
	doc := simpleDocx(t, "{% for s in sections %}[{{ s.heading }}]{% endfor %}")

	result := mustRender(t, doc, map[string]any{
		"sections": []any{map[string]any{"other": "x"}},
	})
	body := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "[]")
}

func TestRenderRunSplitExpression(t *testing.T) {
	// the expression is split across two runs inside the part markup
	body := `<?xml version="1.0"?><w:document><w:body><w:p>` +
		`<w:r><w:t>{{ ti</w:t></w:r><w:r><w:t>tle }}</w:t></w:r>` +
		`</w:p></w:body></w:document>`
	doc := buildDocx(t, map[string]string{"word/document.xml": body})

	result := mustRender(t, doc, map[string]any{"title": "Merged"})
	out := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, out, "Merged")
	assert.NotContains(t, out, "{{")
}

func TestRenderEscapesValues(t *testing.T) {
	doc := simpleDocx(t, "{{ title }}")

	result := mustRender(t, doc, map[string]any{"title": "Profit & <Loss>"})
	body := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "Profit &amp; &lt;Loss&gt;")
}

func TestRenderZeroPlaceholderTemplate(t *testing.T) {
	doc := simpleDocx(t, "Static content only.")

	result := mustRender(t, doc, nil)
	body := renderedPart(t, result.Content, "word/document.xml")
	assert.Contains(t, body, "Static content only.")
}

func TestRenderUsesSuggestedFilename(t *testing.T) {
	doc := simpleDocx(t, "{{ title }}")

	inv, err := ExtractPlaceholders(doc)
	require.NoError(t, err)
	result, err := ValidateAndRender(RenderRequest{
		TemplateName:   "report.docx",
		TemplateBytes:  doc,
		Inventory:      inv,
		Content:        map[string]any{"title": "x"},
		OutputFilename: "custom_name.docx",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom_name.docx", result.Filename)
}

func TestRenderDefaultsToDerivedFilename(t *testing.T) {
	doc := simpleDocx(t, "{{ title }}")

	result := mustRender(t, doc, map[string]any{"title": "x"})
	assert.True(t, strings.HasPrefix(result.Filename, "test_filled_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".docx"))
}

func TestNormalizeContent(t *testing.T) {
	in := map[string]any{
		"title": "  padded  ",
		"empty": "",
		"rows":  []any{nil, "  a  ", nil, map[string]any{"k": " v "}},
	}

	out, ok := NormalizeContent(in).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "padded", out["title"])
	assert.Equal(t, "", out["empty"], "empty strings must survive normalization")

	rows, ok := out["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2, "nil list items are dropped")
	assert.Equal(t, "a", rows[0])
	assert.Equal(t, map[string]any{"k": "v"}, rows[1])
}

func TestCoerceCollections(t *testing.T) {
	inv := &Inventory{Collections: []string{"rows", "tags"}}

	out := CoerceCollections(map[string]any{"rows": nil, "title": "x"}, inv)
	assert.Equal(t, []any{}, out["rows"])
	assert.Equal(t, []any{}, out["tags"])
	assert.Equal(t, "x", out["title"])
}

func TestMissingFieldFromError(t *testing.T) {
	assert.Equal(t, "title", MissingFieldFromError(&UndefinedFieldError{Field: "title"}))
	assert.Equal(t, "", MissingFieldFromError(errors.New("some other problem")))
	assert.Equal(t, "", MissingFieldFromError(nil))
}
