package services

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrNoQuestionsFound indicates a document with no parseable question
// structure. The orchestrator tries the fallback strategy once before
// surfacing this to the job.
var ErrNoQuestionsFound = errors.New("no parseable questions found in document")

// ExtractedQuestion is the transient output of the extractor, before
// classification and persistence.
type ExtractedQuestion struct {
	QuestionNumber string
	Text           string
	Marks          int
	Part           string // "A", "B" or ""
	ModuleHint     int    // 0 when the layout carried no module heading
}

// Extraction tuning. Calibrated against KTU-style papers: a 10-question
// 3-mark Part A followed by a Part B of 14-mark questions numbered 11-20.
const (
	maxQuestionTextLen  = 2000
	partAMarks          = 3
	partBMarks          = 14
	partAQuestionCount  = 10
	partALineMinLen     = 15
	partBAnchorGate     = 7    // min anchors to trust the numbered layout
	partBRecoveryFloor  = 8    // below this, aggressive recovery kicks in
	minTotalQuestions   = 5    // below this, the line-by-line fallback runs
	recoveryWindowChars = 1200 // max window for recovered question text
)

// QuestionExtractor parses normalized exam text into question records.
// It layers strategies: section split, Part A line scan, Part B numbered
// anchors, Part B module-grouped walk, aggressive recovery, and a
// line-by-line fallback. Earlier strategies win on duplicate numbers.
type QuestionExtractor struct {
	normalizer *TextNormalizer
}

// NewQuestionExtractor creates a new question extractor
func NewQuestionExtractor() *QuestionExtractor {
	return &QuestionExtractor{normalizer: NewTextNormalizer()}
}

var (
	partAHeadingRegex = regexp.MustCompile(`(?im)^\s*part\s*[-:]?\s*a\b.*$`)
	partBHeadingRegex = regexp.MustCompile(`(?im)^\s*part\s*[-:]?\s*b\b.*$`)

	// Question-number token followed by an a) sub-part marker. OCR often
	// reads the digit 1 as l or I, and 0 as O.
	anchorRegex = regexp.MustCompile(`(?m)(?:^|\s)([1lI2][0-9lIO])\s*[.)]?\s*\(?a\)`)

	moduleHeadingRegex = regexp.MustCompile(`(?im)^\s*module\s*[-:]?\s*([0-9]+|[ivx]+)\b.*$`)
	subPartRegex       = regexp.MustCompile(`(?m)(?:^|\s)\(?([ab])\)\s*`)

	// Recovery patterns: bare number+a) or a)+number anywhere in the section
	recoveryNumFirstRegex = regexp.MustCompile(`(\d{1,2})\s*\(?a\)`)
	recoveryNumAfterRegex = regexp.MustCompile(`\(?a\)\s*(\d{1,2})[.)]?\s`)

	lineStartDotRegex   = regexp.MustCompile(`^(\d{1,2})\.\s+(.+)$`)
	lineStartParenRegex = regexp.MustCompile(`^(\d{1,2})\)\s+(.+)$`)
)

// Extract parses a raw text blob into an ordered question list.
// It returns ErrNoQuestionsFound only for documents with no recognizable
// structure at all; a low-but-nonzero count is returned as-is and the
// caller decides whether that constitutes a failure.
func (e *QuestionExtractor) Extract(raw string) ([]ExtractedQuestion, error) {
	text := e.normalizer.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoQuestionsFound
	}

	partA, partB, hasBoundaries := e.splitSections(text)

	var questions []ExtractedQuestion
	seen := make(map[string]bool)

	if partA != "" {
		questions = appendUnique(questions, seen, e.extractPartA(partA)...)
	}

	if partB != "" {
		anchors := findAnchors(partB)
		var partBQuestions []ExtractedQuestion
		if len(anchors) >= partBAnchorGate {
			partBQuestions = e.extractPartBNumbered(partB, anchors)
		} else {
			partBQuestions = e.extractPartBModuleGrouped(partB)
		}
		questions = appendUnique(questions, seen, partBQuestions...)

		if countPart(questions, "B") < partBRecoveryFloor {
			recovered := e.recoverPartB(partB, seen)
			questions = appendUnique(questions, seen, recovered...)
		}
	}

	if len(questions) < minTotalQuestions {
		if fallback := e.lineFallback(text, minTotalQuestions); fallback != nil {
			log.Printf("QuestionExtractor: structured strategies found %d questions, line fallback found %d",
				len(questions), len(fallback))
			questions = fallback
		}
	}

	if len(questions) == 0 || (!hasBoundaries && len(questions) < minTotalQuestions) {
		return nil, fmt.Errorf("%w: %d questions recovered", ErrNoQuestionsFound, len(questions))
	}

	return questions, nil
}

// ExtractFallback is the secondary strategy the orchestrator runs when
// Extract fails outright: a pure line-by-line parse with no section logic
// and no minimum-count gate beyond non-emptiness.
func (e *QuestionExtractor) ExtractFallback(raw string) ([]ExtractedQuestion, error) {
	text := e.normalizer.Normalize(raw)
	best := e.lineFallback(text, 1)
	if len(best) == 0 {
		return nil, ErrNoQuestionsFound
	}
	return best, nil
}

// splitSections locates the Part A and Part B headings. Returns the section
// bodies and whether at least one boundary was found.
func (e *QuestionExtractor) splitSections(text string) (partA, partB string, found bool) {
	aLoc := partAHeadingRegex.FindStringIndex(text)
	bLoc := partBHeadingRegex.FindStringIndex(text)

	switch {
	case aLoc != nil && bLoc != nil && bLoc[0] > aLoc[1]:
		return text[aLoc[1]:bLoc[0]], text[bLoc[1]:], true
	case aLoc != nil && bLoc == nil:
		return text[aLoc[1]:], "", true
	case aLoc == nil && bLoc != nil:
		return "", text[bLoc[1]:], true
	}
	return "", "", false
}

// extractPartA assigns sequential numbers 1..10 to the first ten
// non-boilerplate lines, fixed at 3 marks each.
func (e *QuestionExtractor) extractPartA(section string) []ExtractedQuestion {
	var questions []ExtractedQuestion
	number := 1

	for _, line := range strings.Split(section, "\n") {
		if number > partAQuestionCount {
			break
		}
		if e.normalizer.IsBoilerplate(line, partALineMinLen) {
			continue
		}
		text, _ := e.normalizer.StripMarkAnnotation(line)
		text = stripLeadingNumberToken(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		questions = append(questions, ExtractedQuestion{
			QuestionNumber: strconv.Itoa(number),
			Text:           truncateText(text),
			Marks:          partAMarks,
			Part:           "A",
		})
		number++
	}
	return questions
}

type anchor struct {
	number   string
	start    int // index of the number token
	bodyFrom int // index just past the a) marker
}

// findAnchors locates "<number> a)" anchors in the Part B section,
// normalizing OCR-confused digits in the number token.
func findAnchors(section string) []anchor {
	matches := anchorRegex.FindAllStringSubmatchIndex(section, -1)
	var anchors []anchor
	for _, m := range matches {
		token := section[m[2]:m[3]]
		num, ok := normalizeNumberToken(token)
		if !ok || num < 11 || num > 30 {
			continue
		}
		anchors = append(anchors, anchor{
			number:   strconv.Itoa(num),
			start:    m[2],
			bodyFrom: m[1],
		})
	}
	return anchors
}

// extractPartBNumbered handles format 1: inline question numbers directly
// followed by a)/b) sub-parts. Each anchor delimits a window up to the next
// anchor; a) and b) texts are joined with an OR separator at 14 marks.
func (e *QuestionExtractor) extractPartBNumbered(section string, anchors []anchor) []ExtractedQuestion {
	var questions []ExtractedQuestion
	for i, a := range anchors {
		end := len(section)
		if i+1 < len(anchors) {
			end = anchors[i+1].start
		}
		window := section[a.bodyFrom:end]
		text := e.joinSubParts(window)
		if strings.TrimSpace(text) == "" {
			continue
		}
		questions = append(questions, ExtractedQuestion{
			QuestionNumber: a.number,
			Text:           truncateText(text),
			Marks:          partBMarks,
			Part:           "B",
		})
	}
	return questions
}

// joinSubParts takes the window following an a) marker and, when a b)
// marker is present, joins the two alternatives with an OR separator.
func (e *QuestionExtractor) joinSubParts(window string) string {
	bRegex := regexp.MustCompile(`(?m)(?:^|\s)\(?b\)\s*`)
	if loc := bRegex.FindStringIndex(window); loc != nil {
		aText, _ := e.normalizer.StripMarkAnnotation(strings.TrimSpace(window[:loc[0]]))
		bText, _ := e.normalizer.StripMarkAnnotation(strings.TrimSpace(window[loc[1]:]))
		if bText != "" {
			return collapseWhitespace(aText) + "\nOR\n" + collapseWhitespace(bText)
		}
		return collapseWhitespace(aText)
	}
	text, _ := e.normalizer.StripMarkAnnotation(strings.TrimSpace(window))
	return collapseWhitespace(text)
}

// extractPartBModuleGrouped handles format 2: the section is organized by
// module headings instead of question numbers. Consecutive a)/b) pairs
// inside each module block become one question, numbered from 11 upward.
func (e *QuestionExtractor) extractPartBModuleGrouped(section string) []ExtractedQuestion {
	headings := moduleHeadingRegex.FindAllStringSubmatchIndex(section, -1)
	if len(headings) == 0 {
		return nil
	}

	var questions []ExtractedQuestion
	number := 11

	for i, h := range headings {
		moduleNum := parseModuleNumber(section[h[2]:h[3]])
		end := len(section)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		block := section[h[1]:end]

		markers := subPartRegex.FindAllStringSubmatchIndex(block, -1)
		for j := 0; j < len(markers); j++ {
			label := block[markers[j][2]:markers[j][3]]
			if label != "a" {
				continue
			}
			aEnd := nextMarkerStart(markers, j, len(block))
			aText, _ := e.normalizer.StripMarkAnnotation(strings.TrimSpace(block[markers[j][1]:aEnd]))

			text := collapseWhitespace(aText)
			if j+1 < len(markers) && block[markers[j+1][2]:markers[j+1][3]] == "b" {
				bEnd := nextMarkerStart(markers, j+1, len(block))
				bText, _ := e.normalizer.StripMarkAnnotation(strings.TrimSpace(block[markers[j+1][1]:bEnd]))
				if bText != "" {
					text = text + "\nOR\n" + collapseWhitespace(bText)
				}
				j++
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			questions = append(questions, ExtractedQuestion{
				QuestionNumber: strconv.Itoa(number),
				Text:           truncateText(text),
				Marks:          partBMarks,
				Part:           "B",
				ModuleHint:     moduleNum,
			})
			number++
		}
	}
	return questions
}

// recoverPartB rescans for number/a) patterns anywhere in the section,
// skipping numbers already captured, and extracts up to the next anchor or
// a fixed character window.
func (e *QuestionExtractor) recoverPartB(section string, seen map[string]bool) []ExtractedQuestion {
	type hit struct {
		number string
		from   int
	}
	var hits []hit

	for _, m := range recoveryNumFirstRegex.FindAllStringSubmatchIndex(section, -1) {
		num, err := strconv.Atoi(section[m[2]:m[3]])
		if err == nil && num >= 11 && num <= 30 {
			hits = append(hits, hit{number: strconv.Itoa(num), from: m[1]})
		}
	}
	for _, m := range recoveryNumAfterRegex.FindAllStringSubmatchIndex(section, -1) {
		num, err := strconv.Atoi(section[m[2]:m[3]])
		if err == nil && num >= 11 && num <= 30 {
			hits = append(hits, hit{number: strconv.Itoa(num), from: m[1]})
		}
	}
	// the two scans interleave, keep document order
	sort.Slice(hits, func(a, b int) bool { return hits[a].from < hits[b].from })

	var questions []ExtractedQuestion
	for _, h := range hits {
		if seen[h.number] {
			continue
		}
		end := h.from + recoveryWindowChars
		if end > len(section) {
			end = len(section)
		}
		window := section[h.from:end]
		// stop at the next recognized anchor inside the window
		if loc := anchorRegex.FindStringIndex(window); loc != nil && loc[0] > 0 {
			window = window[:loc[0]]
		}
		text, _ := e.normalizer.StripMarkAnnotation(strings.TrimSpace(window))
		text = collapseWhitespace(text)
		if text == "" {
			continue
		}
		seen[h.number] = true
		questions = append(questions, ExtractedQuestion{
			QuestionNumber: h.number,
			Text:           truncateText(text),
			Marks:          partBMarks,
			Part:           "B",
		})
	}
	return questions
}

// lineFallback reparses the whole document line by line, treating a leading
// "N." or "N)" token as a new question start. Two passes run with the two
// token styles; the first pass reaching the threshold wins. Returns nil when
// neither does.
func (e *QuestionExtractor) lineFallback(text string, threshold int) []ExtractedQuestion {
	for _, pattern := range []*regexp.Regexp{lineStartDotRegex, lineStartParenRegex} {
		result := e.lineFallbackPass(text, pattern)
		if len(result) >= threshold {
			return result
		}
	}
	return nil
}

func (e *QuestionExtractor) lineFallbackPass(text string, pattern *regexp.Regexp) []ExtractedQuestion {
	var questions []ExtractedQuestion
	seen := make(map[string]bool)
	var current *ExtractedQuestion

	flush := func() {
		if current == nil {
			return
		}
		current.Text = truncateText(strings.TrimSpace(current.Text))
		if current.Text != "" && !seen[current.QuestionNumber] {
			seen[current.QuestionNumber] = true
			questions = append(questions, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := pattern.FindStringSubmatch(line); m != nil {
			flush()
			body, marks := e.normalizer.StripMarkAnnotation(m[2])
			current = &ExtractedQuestion{
				QuestionNumber: m[1],
				Text:           body,
				Marks:          marks,
			}
			continue
		}
		if current != nil && !e.normalizer.IsBoilerplate(line, partALineMinLen) {
			body, marks := e.normalizer.StripMarkAnnotation(line)
			current.Text += " " + body
			if marks > 0 && current.Marks == 0 {
				current.Marks = marks
			}
		}
	}
	flush()
	return questions
}

func appendUnique(dst []ExtractedQuestion, seen map[string]bool, src ...ExtractedQuestion) []ExtractedQuestion {
	for _, q := range src {
		if seen[q.QuestionNumber] {
			continue
		}
		seen[q.QuestionNumber] = true
		dst = append(dst, q)
	}
	return dst
}

func countPart(questions []ExtractedQuestion, part string) int {
	count := 0
	for _, q := range questions {
		if q.Part == part {
			count++
		}
	}
	return count
}

// normalizeNumberToken maps OCR-confused characters back to digits
func normalizeNumberToken(token string) (int, bool) {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case 'l', 'I':
			return '1'
		case 'O':
			return '0'
		}
		return r
	}, token)
	num, err := strconv.Atoi(replaced)
	if err != nil {
		return 0, false
	}
	return num, true
}

func nextMarkerStart(markers [][]int, i, blockLen int) int {
	if i+1 < len(markers) {
		return markers[i+1][0]
	}
	return blockLen
}

func parseModuleNumber(token string) int {
	token = strings.ToLower(strings.TrimSpace(token))
	if num, err := strconv.Atoi(token); err == nil {
		return num
	}
	romans := map[string]int{"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6}
	return romans[token]
}

func stripLeadingNumberToken(line string) string {
	return regexp.MustCompile(`^\s*\d{1,2}\s*[.)]\s*`).ReplaceAllString(line, "")
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncateText(text string) string {
	if len(text) <= maxQuestionTextLen {
		return text
	}
	cut := maxQuestionTextLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
