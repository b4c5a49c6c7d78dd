// Package rewriter locates import forms in JavaScript source text and
// splices in post-resolution module identifiers, per spec.md §4.3. It
// works in two passes so it fits the worker/orchestrator split spec.md
// §4.4/§4.5 describe: Scan locates every import form and its specifier
// without needing any resolution result (this is what a worker runs,
// and its return value is exactly spec.md §4.4's "discovered
// specifiers"); Apply performs the actual substitution once the
// orchestrator has resolved every discovered specifier for that file
// (spec.md §4.5 step 4, "when the result's deps are all resolved").
package rewriter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bundlex/bundlex/internal/lexer"
	"github.com/bundlex/bundlex/internal/resolver"
	"github.com/bundlex/bundlex/internal/sourcemap"
)

// FormKind identifies which recognized import form matched.
type FormKind uint8

const (
	FormRequireCall FormKind = iota // require("x")
	FormDynamicImport
	FormImportFrom // import ... from "x"; also the bare import "x";
	FormExportFrom // export ... from "x"
)

// ImportSite is one occurrence of an import form in a source file: the
// decoded specifier text and the byte span of the string literal
// (including its quotes) that Apply will replace.
type ImportSite struct {
	Kind      FormKind
	Specifier string
	Raw       string // the literal's exact original text, quotes included
	Span      lexer.Span
}

// IgnoredModuleID is the canonical table key the writer reserves for the
// synthetic empty-exports module that an Ignore'd specifier (spec.md §3,
// the "browser": false substitution) is rewritten to point at.
const IgnoredModuleID = "\x00bundlex:ignore\x00"

// Scan locates every import form in source and returns one ImportSite per
// occurrence, in ascending span order. It does not consult any
// resolution information: this is the "discovered_specifier" producing
// half of spec.md §4.4's worker contract.
func Scan(source string) ([]ImportSite, error) {
	toks := lexer.Scan(source)
	var sites []ImportSite

	sig := significantIndices(toks)

	for i, idx := range sig {
		tok := toks[idx]

		switch {
		case tok.Kind == lexer.TIdentifier && tok.Raw == "require":
			if site, ok := matchCallArgument(toks, sig, i, FormRequireCall); ok {
				sites = append(sites, site)
			}

		case tok.Kind == lexer.TKeyword && tok.Raw == "import":
			if site, ok := matchCallArgument(toks, sig, i, FormDynamicImport); ok {
				sites = append(sites, site)
				continue
			}
			if site, ok := matchBareImportString(toks, sig, i); ok {
				sites = append(sites, site)
				continue
			}
			if site, ok := matchFromClause(toks, sig, i, FormImportFrom); ok {
				sites = append(sites, site)
			}

		case tok.Kind == lexer.TKeyword && tok.Raw == "export":
			if site, ok := matchFromClause(toks, sig, i, FormExportFrom); ok {
				sites = append(sites, site)
			}
		}
	}

	for _, tok := range toks {
		if tok.Err != nil {
			return sites, tok.Err
		}
	}
	return sites, nil
}

// significantIndices returns, in order, the indices into toks of every
// token that isn't a comment.
func significantIndices(toks []lexer.Token) []int {
	out := make([]int, 0, len(toks))
	for i, t := range toks {
		if t.Kind != lexer.TComment {
			out = append(out, i)
		}
	}
	return out
}

// matchCallArgument matches `<ident-or-keyword>(<string>)` starting at
// sig[i], the callee token.
func matchCallArgument(toks []lexer.Token, sig []int, i int, kind FormKind) (ImportSite, bool) {
	if i+3 >= len(sig) {
		return ImportSite{}, false
	}
	open := toks[sig[i+1]]
	str := toks[sig[i+2]]
	closeParen := toks[sig[i+3]]
	if open.Kind != lexer.TPunct || open.Raw != "(" {
		return ImportSite{}, false
	}
	if str.Kind != lexer.TString {
		return ImportSite{}, false
	}
	if closeParen.Kind != lexer.TPunct || closeParen.Raw != ")" {
		return ImportSite{}, false
	}
	return ImportSite{Kind: kind, Specifier: str.Value, Raw: str.Raw, Span: str.Span}, true
}

// matchBareImportString matches `import "specifier"` (a side-effect-only
// import with no binding and no "from" clause) starting at sig[i], the
// "import" token.
func matchBareImportString(toks []lexer.Token, sig []int, i int) (ImportSite, bool) {
	if i+1 >= len(sig) {
		return ImportSite{}, false
	}
	str := toks[sig[i+1]]
	if str.Kind != lexer.TString {
		return ImportSite{}, false
	}
	return ImportSite{Kind: FormImportFrom, Specifier: str.Value, Raw: str.Raw, Span: str.Span}, true
}

// matchFromClause scans forward from sig[i] (an "import" or "export"
// keyword) looking for a `from "specifier"` sequence before the
// statement-ending ';' (or a safe bound of tokens, for files the lexer
// didn't cleanly terminate). It does not attempt to parse the import/
// export clause in between — only the two tokens that matter are needed.
func matchFromClause(toks []lexer.Token, sig []int, i int, kind FormKind) (ImportSite, bool) {
	const maxLookahead = 256
	for j := i + 1; j < len(sig) && j < i+maxLookahead; j++ {
		t := toks[sig[j]]
		if t.Kind == lexer.TPunct && t.Raw == ";" {
			return ImportSite{}, false
		}
		if t.Kind == lexer.TIdentifier && t.Raw == "from" && j+1 < len(sig) {
			str := toks[sig[j+1]]
			if str.Kind == lexer.TString {
				return ImportSite{Kind: kind, Specifier: str.Value, Raw: str.Raw, Span: str.Span}, true
			}
		}
	}
	return ImportSite{}, false
}

// Apply performs the substitution pass of spec.md §4.3: it copies source
// verbatim except at each site, where it substitutes per the site's
// ResolvedRef in deps (External: unchanged; Ignore: the sentinel
// IgnoredModuleID; Normal: the JSON-quoted canonical path). It also
// builds the segment list spec.md §4.3 and §8 require: one segment at
// every original line boundary, plus one at each substitution, in
// ascending output (line, column) order.
func Apply(source string, sites []ImportSite, deps map[string]resolver.ResolvedRef) (string, []sourcemap.Segment, error) {
	var out strings.Builder
	var segments []sourcemap.Segment

	outPos := sourcemap.LineColumnOffset{}
	inPos := sourcemap.LineColumnOffset{}
	cursor := 0

	emitSegment := func() {
		segments = append(segments, sourcemap.Segment{
			GeneratedLine:   outPos.Lines,
			GeneratedColumn: outPos.Columns,
			OriginalLine:    inPos.Lines,
			OriginalColumn:  inPos.Columns,
		})
	}
	emitSegment()

	copyVerbatim := func(end int) {
		for cursor < end {
			nextNewline := strings.IndexByte(source[cursor:end], '\n')
			if nextNewline < 0 {
				chunk := source[cursor:end]
				out.WriteString(chunk)
				outPos.AdvanceString(chunk)
				inPos.AdvanceString(chunk)
				cursor = end
				return
			}
			chunk := source[cursor : cursor+nextNewline+1]
			out.WriteString(chunk)
			outPos.AdvanceString(chunk)
			inPos.AdvanceString(chunk)
			cursor += nextNewline + 1
			emitSegment()
		}
	}

	for _, site := range sites {
		if site.Span.Start < cursor {
			continue // overlapping/duplicate site; Scan never produces these, but stay defensive
		}
		copyVerbatim(site.Span.Start)

		replacement, err := substitutionFor(site, deps)
		if err != nil {
			return "", nil, err
		}
		out.WriteString(replacement)
		outPos.AdvanceString(replacement)

		originalText := source[site.Span.Start:site.Span.End]
		inPos.AdvanceString(originalText)
		cursor = site.Span.End

		emitSegment()
	}
	copyVerbatim(len(source))

	return out.String(), segments, nil
}

// toQuotedJSONString mirrors the original implementation's
// `to_quoted_json_string`: the resolved-path substitution spliced into
// rewritten import forms is always a JSON-encoded string, never
// hand-rolled quoting.
func toQuotedJSONString(s string) string {
	b, _ := json.Marshal(s) // json.Marshal on a string only fails for invalid UTF-8, which Go strings from valid source text never are
	return string(b)
}

func substitutionFor(site ImportSite, deps map[string]resolver.ResolvedRef) (string, error) {
	ref, ok := deps[site.Specifier]
	if !ok {
		return "", fmt.Errorf("no resolution recorded for specifier %q", site.Specifier)
	}
	switch ref.Kind {
	case resolver.RefExternal:
		return site.Raw, nil
	case resolver.RefIgnore:
		return toQuotedJSONString(IgnoredModuleID), nil
	case resolver.RefNormal:
		return toQuotedJSONString(ref.Path), nil
	default:
		return "", fmt.Errorf("unresolved ref kind for specifier %q", site.Specifier)
	}
}
