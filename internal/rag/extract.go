package rag

import (
	"iter"
	"regexp"
	"strings"
)

// minParagraphTokens is the exclusive lower bound on whitespace-delimited
// tokens a paragraph must have to survive extraction. Shorter spans are
// headings, captions, and layout debris, not prose.
const minParagraphTokens = 10

// noiseRule is a named predicate identifying one class of noise line.
// Rules are evaluated in order with short-circuit OR, so new patterns can
// be appended without touching the extraction loop.
type noiseRule struct {
	// name labels the rule for debugging and tests.
	name string
	// match reports whether the trimmed line is noise under this rule.
	match func(line string) bool
}

var (
	// academicIDPattern matches preprint identifier lines, e.g.
	// "arXiv:2501.17161v1 [cs.LG] 28 Jan 2025".
	academicIDPattern = regexp.MustCompile(`(?i)^arxiv:\s*\d{4}\.\d{4,5}(v\d+)?\b`)

	// standaloneNumberPattern matches page numbers and orphaned counters.
	standaloneNumberPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

	// floatReferencePattern matches figure and table caption prefixes.
	floatReferencePattern = regexp.MustCompile(`(?i)^(figure|fig\.?|table)\s+\d+`)

	// bracketCitationPattern matches lines that are only a citation
	// marker, e.g. "[12]" or "[3, 7, 21]".
	bracketCitationPattern = regexp.MustCompile(`^\[\d+(\s*[,\x{2013}-]\s*\d+)*\]$`)

	// htmlFragmentPattern matches lines that are a single markup tag or
	// comment left behind by document conversion.
	htmlFragmentPattern = regexp.MustCompile(`^</?[a-zA-Z!][^>]*>?$`)

	// bareURLPattern matches lines that are just a link.
	bareURLPattern = regexp.MustCompile(`^(https?://|www\.)\S+$`)
)

// boilerplateKeywords flags lines belonging to back-matter and front-matter
// sections that carry no evidential content. Matched case-insensitively as
// a substring of the line.
var boilerplateKeywords = []string{
	"references",
	"bibliography",
	"acknowledgments",
	"acknowledgements",
	"appendix",
	"table of contents",
	"list of figures",
	"list of tables",
}

// noiseRules is the ordered rule set applied to every non-blank line.
var noiseRules = []noiseRule{
	{"academic_id", academicIDPattern.MatchString},
	{"standalone_number", standaloneNumberPattern.MatchString},
	{"float_reference", floatReferencePattern.MatchString},
	{"bracket_citation", bracketCitationPattern.MatchString},
	{"html_fragment", htmlFragmentPattern.MatchString},
	{"bare_url", bareURLPattern.MatchString},
	{"boilerplate_section", isBoilerplateLine},
}

// isBoilerplateLine reports whether the line contains any boilerplate
// section keyword, case-insensitively.
func isBoilerplateLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range boilerplateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isNoiseLine reports whether the trimmed line matches any noise rule.
func isNoiseLine(line string) bool {
	for _, rule := range noiseRules {
		if rule.match(line) {
			return true
		}
	}
	return false
}

// ExtractParagraphs converts raw hit content into a sequence of candidate
// paragraph strings. Non-empty, non-noise lines accumulate into a running
// buffer; a blank line closes the buffer into one space-joined paragraph
// if it holds more than minParagraphTokens tokens, and any trailing buffer
// is flushed under the same rule. The returned sequence is lazy, finite,
// and single-use.
func ExtractParagraphs(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var buf []string

		flush := func() (string, bool) {
			if len(buf) == 0 {
				return "", false
			}
			paragraph := strings.Join(buf, " ")
			buf = buf[:0]
			if len(strings.Fields(paragraph)) <= minParagraphTokens {
				return "", false
			}
			return paragraph, true
		}

		for line := range strings.Lines(raw) {
			line = strings.TrimSpace(line)
			if line == "" {
				if p, ok := flush(); ok && !yield(p) {
					return
				}
				continue
			}
			if isNoiseLine(line) {
				continue
			}
			buf = append(buf, line)
		}

		if p, ok := flush(); ok {
			yield(p)
		}
	}
}
