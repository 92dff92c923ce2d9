package services

import (
	"regexp"
	"strings"
)

// TextNormalizer cleans raw extracted PDF/OCR text before question parsing.
// The output keeps line structure intact; only intra-line noise is removed.
type TextNormalizer struct{}

// NewTextNormalizer creates a new text normalizer
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

var (
	// OCR frequently emits these in place of their ASCII equivalents
	ocrReplacer = strings.NewReplacer(
		"\u00A0", " ", // non-breaking space
		"\u200B", "", // zero-width space
		"\u200C", "", "\u200D", "",
		"\uFEFF", "", // byte order mark
		"ﬁ", "fi", "ﬂ", "fl",
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
		"–", "-", "—", "-",
		"•", "-",
	)

	multiSpaceRegex  = regexp.MustCompile(`[ \t]{2,}`)
	pageMarkerRegex  = regexp.MustCompile(`(?i)^\s*(page\s*\d+(\s*(of|/)\s*\d+)?|\d+\s*/\s*\d+|-+\s*\d+\s*-+)\s*$`)
	pureNumberRegex  = regexp.MustCompile(`^\s*\d{1,4}\s*$`)
	markSuffixRegex  = regexp.MustCompile(`(?i)[\(\[]\s*(\d{1,2})\s*(marks?|mks?|m)?\s*[\)\]]\s*$`)
	bareMarkSuffix   = regexp.MustCompile(`(?i)\s+(\d{1,2})\s*marks?\s*$`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
)

// Normalize cleans a raw text blob: CRLF and control characters removed,
// common OCR artifacts replaced, runs of spaces collapsed, lines trimmed.
func (n *TextNormalizer) Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = ocrReplacer.Replace(text)
	text = controlCharRegex.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaceRegex.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}

// IsBoilerplate reports whether a line is page furniture rather than
// question content: page markers, bare numbers, or fragments shorter than
// minLen after trimming.
func (n *TextNormalizer) IsBoilerplate(line string, minLen int) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < minLen {
		return true
	}
	if pageMarkerRegex.MatchString(trimmed) || pureNumberRegex.MatchString(trimmed) {
		return true
	}
	return false
}

// StripMarkAnnotation removes a trailing "(3 marks)" / "[3]" / "3 marks"
// style annotation and returns the cleaned text plus the parsed mark value
// (0 when no annotation was present).
func (n *TextNormalizer) StripMarkAnnotation(text string) (string, int) {
	if m := markSuffixRegex.FindStringSubmatch(text); m != nil {
		marks := parseInt(m[1])
		return strings.TrimSpace(markSuffixRegex.ReplaceAllString(text, "")), marks
	}
	if m := bareMarkSuffix.FindStringSubmatch(text); m != nil {
		marks := parseInt(m[1])
		return strings.TrimSpace(bareMarkSuffix.ReplaceAllString(text, "")), marks
	}
	return text, 0
}

func parseInt(s string) int {
	v := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		v = v*10 + int(r-'0')
	}
	return v
}
