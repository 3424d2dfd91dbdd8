package app

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"propvalue/internal/domain"
)

type parseState int

const (
	noPoint parseState = iota
	inPoint
	inSummary
)

const maxTitleLen = 100

var (
	pointHeaderRe = regexp.MustCompile(`^#*\s*n?(\d+)[.)]?\s*(.*)$`)
	boldLeadRe    = regexp.MustCompile(`^\*\*(.+?)\*\*(.*)$`)
	boldRe        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	inSummaryRe   = regexp.MustCompile(`(?i)^in (?:summary|conclusion)\b[\s:,.*–-]*(.*)$`)
	summaryLeadRe = regexp.MustCompile(`(?i)^(?:summary|conclusion|overall)\b[\s:,.*–-]*(.*)$`)
)

// Lines starting with one of these read as prose, not as a heading.
var sentenceStarters = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"it": {}, "its": {}, "it's": {}, "there": {}, "they": {}, "their": {}, "we": {},
	"our": {}, "you": {}, "your": {}, "in": {}, "on": {}, "at": {}, "with": {},
	"for": {}, "as": {}, "by": {}, "from": {}, "however": {}, "additionally": {},
	"also": {}, "furthermore": {}, "moreover": {}, "while": {}, "although": {},
	"if": {}, "when": {}, "many": {}, "most": {}, "some": {}, "residents": {},
	"local": {}, "being": {}, "having": {}, "located": {}, "close": {}, "near": {},
}

type pointBuilder struct {
	number  int
	title   string
	content []string
	raw     []string
}

func (b *pointBuilder) addContent(s string) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
	if s != "" {
		b.content = append(b.content, s)
	}
}

func (b *pointBuilder) build() domain.NarrativePoint {
	// drop trailing blank source lines
	raw := b.raw
	for len(raw) > 0 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	content := strings.Join(b.content, " ")
	summary := b.title
	if summary == "" {
		summary = firstSentence(content)
	}
	return domain.NarrativePoint{
		Number:  b.number,
		Title:   b.title,
		Content: content,
		RawText: strings.Join(raw, "\n"),
		Summary: summary,
	}
}

// ParseNarrative turns generated analyst text into numbered points and a
// trailing summary. It is total: unstructured input yields no points and the
// original text as the summary.
func ParseNarrative(text string) domain.NarrativeAnalysis {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		state     = noPoint
		points    = []domain.NarrativePoint{}
		cur       *pointBuilder
		summary   []string
		blankRun  int
		seenLines bool
	)
	flush := func() {
		if cur != nil {
			points = append(points, cur.build())
			cur = nil
		}
	}

	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			blankRun++
			if cur != nil {
				cur.raw = append(cur.raw, rawLine)
			}
			continue
		}
		afterBlank := !seenLines || (blankRun >= 1 && blankRun <= 2)
		blankRun = 0
		seenLines = true

		if state == inSummary {
			summary = appendNonEmpty(summary, line)
			continue
		}

		if m := pointHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			cur = &pointBuilder{number: n, raw: []string{rawLine}}
			state = inPoint
			openPoint(cur, strings.TrimSpace(m[2]))
			continue
		}

		if rest, ok := summaryTrigger(line, afterBlank); ok {
			flush()
			state = inSummary
			summary = appendNonEmpty(summary, rest)
			continue
		}

		if state != inPoint {
			// preamble before the first point
			continue
		}

		cur.raw = append(cur.raw, rawLine)
		switch {
		case cur.title == "" && boldRe.MatchString(line):
			m := boldRe.FindStringSubmatchIndex(line)
			cur.title = cleanTitle(line[m[2]:m[3]])
			cur.addContent(trimLeadPunct(line[:m[0]] + " " + line[m[1]:]))
		case cur.title == "" && isTitleLike(line) && !startsWithSentenceStarter(line):
			cur.title = cleanTitle(line)
		default:
			cur.addContent(line)
		}
	}
	flush()

	out := domain.NarrativeAnalysis{
		Points:  points,
		Summary: strings.Join(summary, " "),
		RawText: text,
	}
	if len(points) == 0 && out.Summary == "" {
		out.Summary = text
	}
	return out
}

// openPoint classifies the text following a point number.
func openPoint(b *pointBuilder, rest string) {
	if rest == "" {
		return
	}
	if m := boldLeadRe.FindStringSubmatch(rest); m != nil {
		b.title = cleanTitle(m[1])
		b.addContent(trimLeadPunct(m[2]))
		return
	}
	if isTitleLike(rest) {
		b.title = cleanTitle(rest)
		return
	}
	b.addContent(rest)
}

func summaryTrigger(line string, afterBlank bool) (string, bool) {
	bare := strings.TrimSpace(strings.TrimLeft(line, "#* "))
	if afterBlank {
		if m := inSummaryRe.FindStringSubmatch(bare); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	if m := summaryLeadRe.FindStringSubmatch(bare); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// isTitleLike: short, no trailing period, starts with a capital letter.
func isTitleLike(s string) bool {
	s = strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
	if s == "" || utf8.RuneCountInString(s) >= maxTitleLen {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func startsWithSentenceStarter(s string) bool {
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(s, "**", "")))
	if len(fields) == 0 {
		return false
	}
	_, ok := sentenceStarters[strings.Trim(fields[0], ",:;")]
	return ok
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
	return strings.TrimSpace(strings.TrimRight(s, ":-–"))
}

func trimLeadPunct(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), ":-–"))
}

// firstSentence is s up to and including the first period, or all of s
// when it has none.
func firstSentence(s string) string {
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i+1]
	}
	return s
}

func appendNonEmpty(dst []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		return append(dst, s)
	}
	return dst
}
