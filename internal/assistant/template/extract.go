// Package template inspects and renders DOCX templates. A DOCX file is a zip
// archive of OOXML parts; template expressions ({{ field }}, {% for item in
// items %}) live inside text runs that Word may split at arbitrary points, so
// inspection works on reconstructed run streams rather than the raw markup.
// The regex-based approach is an implementation detail of this package and is
// not visible to callers.
package template

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// textPartNames lists every DOCX part that can carry template expressions:
// the body, headers, footers, notes and comments.
var textPartNames = buildTextPartNames()

func buildTextPartNames() []string {
	parts := []string{"word/document.xml"}
	for n := 1; n <= 9; n++ {
		parts = append(parts, fmt.Sprintf("word/header%d.xml", n))
	}
	for n := 1; n <= 9; n++ {
		parts = append(parts, fmt.Sprintf("word/footer%d.xml", n))
	}
	parts = append(parts, "word/endnotes.xml", "word/footnotes.xml", "word/comments.xml")
	return parts
}

var (
	textRunRe   = regexp.MustCompile(`(?s)<w:t[^>]*>(.*?)</w:t>`)
	instrTextRe = regexp.MustCompile(`(?s)<w:instrText[^>]*>(.*?)</w:instrText>`)
	fldSimpleRe = regexp.MustCompile(`(?s)<w:fldSimple[^>]*>(.*?)</w:fldSimple>`)

	forLoopRe = regexp.MustCompile(`\{%\s*for\s+([A-Za-z_]\w*)\s+in\s+([A-Za-z_]\w*)\s*%\}`)
	exprRe    = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.]*)\s*(?:\|[^}]*)?\}\}`)
)

var xmlEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// Inventory is the set of fields a template requires at render time.
// Variables are scalar substitutions, Collections are loop targets, Dotted
// records base.attr references as written. AllRequired is the union callers
// must supply: collections, scalars, and dotted bases after loop-variable
// substitution. Loop iteration variables are never required.
type Inventory struct {
	Variables   []string
	Collections []string
	Dotted      []string
	AllRequired []string

	// LoopVars maps each loop iteration variable to its collection.
	LoopVars map[string]string
}

// IsCollection reports whether the named field is a loop target.
func (inv *Inventory) IsCollection(name string) bool {
	for _, c := range inv.Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Empty reports whether the template has no placeholders at all.
func (inv *Inventory) Empty() bool {
	return len(inv.AllRequired) == 0
}

// ExtractPlaceholders parses raw DOCX bytes and returns the template's field
// inventory. A template with no placeholders yields an empty, successful
// inventory. Unreadable bytes fail with a VALIDATION_ERROR, which is distinct
// from the caller-side TEMPLATE_NOT_FOUND lookup failure.
func ExtractPlaceholders(fileBytes []byte) (*Inventory, error) {
	tokens, err := collectRunTokens(fileBytes)
	if err != nil {
		return nil, err
	}

	// Primary reconstruction joins runs without separators so expressions
	// split across adjacent runs reassemble. The space-joined secondary pass
	// is the documented tie-break: it catches expressions whose boundaries
	// the primary gluing accidentally collides, and the results are unioned.
	joinedNoSep := strings.Join(tokens, "")
	joinedSpace := strings.Join(tokens, " ")

	loopVars := map[string]string{}
	for _, stream := range []string{joinedNoSep, joinedSpace} {
		for _, m := range forLoopRe.FindAllStringSubmatch(stream, -1) {
			loopVars[m[1]] = m[2]
		}
	}

	exprs := map[string]bool{}
	for _, stream := range []string{joinedNoSep, joinedSpace} {
		for _, m := range exprRe.FindAllStringSubmatch(stream, -1) {
			exprs[m[1]] = true
		}
	}

	variables := map[string]bool{}
	dotted := map[string]bool{}
	for name := range exprs {
		if strings.Contains(name, ".") {
			dotted[name] = true
			continue
		}
		// A loop's iteration variable is never something the caller supplies.
		if _, isLoopVar := loopVars[name]; isLoopVar {
			continue
		}
		variables[name] = true
	}

	collections := map[string]bool{}
	for _, coll := range loopVars {
		collections[coll] = true
	}

	required := map[string]bool{}
	for v := range variables {
		required[v] = true
	}
	for c := range collections {
		required[c] = true
	}
	for d := range dotted {
		base := strings.SplitN(d, ".", 2)[0]
		if coll, ok := loopVars[base]; ok {
			required[coll] = true
		} else {
			required[base] = true
		}
	}

	inv := &Inventory{
		Variables:   sortedKeys(variables),
		Collections: sortedKeys(collections),
		Dotted:      sortedKeys(dotted),
		AllRequired: sortedKeys(required),
		LoopVars:    loopVars,
	}

	logx.Debug().
		Strs("variables", inv.Variables).
		Strs("collections", inv.Collections).
		Msg("Extracted template placeholders")

	return inv, nil
}

// collectRunTokens opens the DOCX archive and harvests the text content of
// every recognized part, in part order.
func collectRunTokens(fileBytes []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, errx.New(err, http.StatusUnprocessableEntity,
			"template bytes are not a readable document").WithCode(errx.CodeValidationError)
	}

	parts := map[string]*zip.File{}
	for _, f := range zr.File {
		parts[f.Name] = f
	}

	var tokens []string
	found := false
	for _, name := range textPartNames {
		f, ok := parts[name]
		if !ok {
			continue
		}
		found = true
		rc, err := f.Open()
		if err != nil {
			return nil, errx.New(err, http.StatusUnprocessableEntity,
				fmt.Sprintf("unreadable template part %s", name)).WithCode(errx.CodeValidationError)
		}
		var buf bytes.Buffer
		_, copyErr := buf.ReadFrom(rc)
		rc.Close()
		if copyErr != nil {
			return nil, errx.New(copyErr, http.StatusUnprocessableEntity,
				fmt.Sprintf("unreadable template part %s", name)).WithCode(errx.CodeValidationError)
		}
		tokens = append(tokens, extractPartTokens(buf.String())...)
	}

	if !found {
		return nil, errx.New(fmt.Errorf("no text-bearing parts in archive"),
			http.StatusUnprocessableEntity, "document has no recognized text parts").WithCode(errx.CodeValidationError)
	}

	return tokens, nil
}

func extractPartTokens(xml string) []string {
	var tokens []string
	for _, re := range []*regexp.Regexp{textRunRe, instrTextRe, fldSimpleRe} {
		for _, m := range re.FindAllStringSubmatch(xml, -1) {
			tokens = append(tokens, xmlEntityReplacer.Replace(m[1]))
		}
	}
	return tokens
}

// PartText returns the plain text of a DOCX document, one token per run,
// joined with newlines per paragraph boundary. Used by the file reader.
func PartText(fileBytes []byte) (string, error) {
	tokens, err := collectRunTokens(fileBytes)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, "\n"), nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
