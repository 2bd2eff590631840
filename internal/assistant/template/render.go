package template

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// UndefinedFieldError is raised when the template references a field absent
// from the content mapping. Its message shape is a contract: callers recover
// the field name by pattern matching "'field' is undefined".
type UndefinedFieldError struct {
	Field string
}

func (e *UndefinedFieldError) Error() string {
	return fmt.Sprintf("'%s' is undefined", e.Field)
}

var undefinedFieldRe = regexp.MustCompile(`'([^']+)' is undefined`)

// MissingFieldFromError recovers the missing field name from a render error's
// text, or "" when the error is not an undefined-field condition.
func MissingFieldFromError(err error) string {
	if err == nil {
		return ""
	}
	m := undefinedFieldRe.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}

// Expressions split across text runs are re-merged before substitution: the
// matches tolerate XML tags between the braces and inside the expression, and
// canonicalize strips those tags out.
var (
	splitExprRe = regexp.MustCompile(`\{(?:<[^>]*>)*\{(?:[^{}<]|<[^>]*>)*?\}(?:<[^>]*>)*\}`)
	splitTagRe  = regexp.MustCompile(`\{(?:<[^>]*>)*%(?:[^<%]|<[^>]*>)*?%(?:<[^>]*>)*\}`)
	xmlTagRe    = regexp.MustCompile(`<[^>]*>`)

	loopBlockRe = regexp.MustCompile(`(?s)\{%\s*for\s+([A-Za-z_]\w*)\s+in\s+([A-Za-z_]\w*)\s*%\}(.*?)\{%\s*endfor\s*%\}`)
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// NormalizeContent recursively prepares an LLM-produced content mapping for
// rendering: strings are trimmed but kept even when empty (a present empty
// string renders blank, a deleted key would fail the render), nil list items
// are dropped, and maps are normalized in place structurally.
func NormalizeContent(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, NormalizeContent(item))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeContent(item)
		}
		return out
	default:
		return v
	}
}

// CoerceCollections replaces absent or null collection fields with empty
// lists, so a collection the LLM judged irrelevant renders as "no items"
// instead of failing the render.
func CoerceCollections(content map[string]any, inv *Inventory) map[string]any {
	out := make(map[string]any, len(content))
	for k, v := range content {
		out[k] = v
	}
	for _, coll := range inv.Collections {
		if v, ok := out[coll]; !ok || v == nil {
			out[coll] = []any{}
		}
	}
	return out
}

// RenderResult is a successfully rendered document.
type RenderResult struct {
	Content  []byte
	Filename string
}

// RenderRequest carries everything needed to validate and render a template.
type RenderRequest struct {
	TemplateName   string
	TemplateBytes  []byte
	Inventory      *Inventory
	Content        map[string]any
	OutputFilename string
}

// ValidateAndRender normalizes and coerces the content mapping against the
// inventory, then renders with strict-undefined semantics. Missing scalar
// fields surface as a VALIDATION_ERROR naming the field; any other render
// failure is an UNKNOWN_ERROR with the raw detail attached.
func ValidateAndRender(req RenderRequest) (*RenderResult, error) {
	inv := req.Inventory
	if inv == nil {
		var err error
		inv, err = ExtractPlaceholders(req.TemplateBytes)
		if err != nil {
			return nil, err
		}
	}

	normalized, _ := NormalizeContent(req.Content).(map[string]any)
	if normalized == nil {
		normalized = map[string]any{}
	}
	content := CoerceCollections(normalized, inv)

	rendered, err := render(req.TemplateBytes, content)
	if err != nil {
		if field := MissingFieldFromError(err); field != "" {
			return nil, errx.New(err, http.StatusUnprocessableEntity,
				fmt.Sprintf("the template is missing required field '%s'", field)).WithCode(errx.CodeValidationError)
		}
		return nil, errx.New(err, http.StatusInternalServerError,
			"failed to render the template").WithCode(errx.CodeUnknownError)
	}

	filename := req.OutputFilename
	if filename == "" {
		filename = DerivedFilename(req.TemplateName)
	}

	logx.Debug().Str("template", req.TemplateName).Str("filename", filename).Msg("Template rendered")
	return &RenderResult{Content: rendered, Filename: filename}, nil
}

// DerivedFilename builds the default output name for a filled template.
func DerivedFilename(templateName string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(templateName, ".docx"), ".doc")
	return fmt.Sprintf("%s_filled_%s.docx", base, time.Now().UTC().Format("20060102"))
}

// render rewrites every recognized text part with substituted content and
// re-zips the archive, leaving all other parts untouched.
func render(templateBytes []byte, content map[string]any) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, fmt.Errorf("open template archive: %w", err)
	}

	recognized := map[string]bool{}
	for _, name := range textPartNames {
		recognized[name] = true
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, copyErr := buf.ReadFrom(rc)
		rc.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("read part %s: %w", f.Name, copyErr)
		}

		data := buf.Bytes()
		if recognized[f.Name] {
			rendered, err := renderPart(buf.String(), content)
			if err != nil {
				return nil, err
			}
			data = []byte(rendered)
		}

		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return out.Bytes(), nil
}

func renderPart(xml string, content map[string]any) (string, error) {
	xml = canonicalize(xml)

	xml, err := expandLoops(xml, content)
	if err != nil {
		return "", err
	}

	return substitute(xml, content)
}

// canonicalize merges expressions that Word split across adjacent runs by
// stripping the XML tags found inside a brace-delimited span.
func canonicalize(xml string) string {
	clean := func(match string) string {
		return xmlTagRe.ReplaceAllString(match, "")
	}
	xml = splitExprRe.ReplaceAllStringFunc(xml, clean)
	xml = splitTagRe.ReplaceAllStringFunc(xml, clean)
	return xml
}

// expandLoops replaces each {% for item in coll %}...{% endfor %} block with
// one copy of the body per collection element, resolving item-scoped
// expressions against the element. Attributes absent on an element render
// blank rather than failing: collection items are LLM-shaped and partial
// rows are expected.
func expandLoops(xml string, content map[string]any) (string, error) {
	var loopErr error
	out := loopBlockRe.ReplaceAllStringFunc(xml, func(block string) string {
		m := loopBlockRe.FindStringSubmatch(block)
		itemVar, collName, body := m[1], m[2], m[3]

		raw, ok := content[collName]
		if !ok || raw == nil {
			if loopErr == nil {
				loopErr = &UndefinedFieldError{Field: collName}
			}
			return ""
		}
		items := asList(raw)

		itemExprRe := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(itemVar) + `(?:\.([A-Za-z_]\w*))?\s*(?:\|[^}]*)?\}\}`)

		var rendered strings.Builder
		for _, item := range items {
			rendered.WriteString(itemExprRe.ReplaceAllStringFunc(body, func(expr string) string {
				em := itemExprRe.FindStringSubmatch(expr)
				if em[1] == "" {
					return formatValue(item)
				}
				if obj, ok := item.(map[string]any); ok {
					return formatValue(obj[em[1]])
				}
				return ""
			}))
		}
		return rendered.String()
	})
	if loopErr != nil {
		return "", loopErr
	}
	return out, nil
}

// substitute resolves the remaining scalar and dotted expressions with strict
// undefined semantics: a referenced top-level field missing from the mapping
// fails the render, naming the field.
func substitute(xml string, content map[string]any) (string, error) {
	var substErr error
	out := exprRe.ReplaceAllStringFunc(xml, func(expr string) string {
		m := exprRe.FindStringSubmatch(expr)
		name := m[1]

		base := name
		var attrs []string
		if strings.Contains(name, ".") {
			segs := strings.Split(name, ".")
			base, attrs = segs[0], segs[1:]
		}

		v, ok := content[base]
		if !ok {
			if substErr == nil {
				substErr = &UndefinedFieldError{Field: base}
			}
			return ""
		}
		for _, attr := range attrs {
			obj, isMap := v.(map[string]any)
			if !isMap {
				v = nil
				break
			}
			v = obj[attr]
		}
		return formatValue(v)
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}

func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return []any{val}
	}
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return xmlEscaper.Replace(fmt.Sprintf("%v", v))
}
