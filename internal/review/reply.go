package review

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/sales-tracker/internal/model"
)

// ErrUnparseable is returned when a reply does not map every position in the
// digest to exactly one verdict.
var ErrUnparseable = eris.New("review: could not parse reply")

// Reply is a parsed human response to a digest. Skip means "decide nothing".
type Reply struct {
	Skip     bool
	Verdicts []model.Verdict
}

type marker struct {
	text    string
	verdict model.Verdict
}

// markers in folded form. Multi-byte markers come first so prefix matching is
// unambiguous.
var markers = []marker{
	{"✅", model.VerdictComparable},
	{"✓", model.VerdictComparable},
	{"✔", model.VerdictComparable},
	{"❌", model.VerdictNotComparable},
	{"✗", model.VerdictNotComparable},
	{"✘", model.VerdictNotComparable},
	{"y", model.VerdictComparable},
	{"x", model.VerdictNotComparable},
	{"n", model.VerdictNotComparable},
}

// ParseReply parses text against a digest of expected positions. Accepted forms,
// case-insensitive, with optional whitespace between tokens:
//
//	skip              decide nothing
//	all✅ / allx       one verdict for every position
//	1✅ 2❌ 3y         numbered, each of 1..expected exactly once
//	✅✅❌ / yyn        one marker per position, in order
//
// Anything else, including a partial mapping, returns ErrUnparseable.
func ParseReply(text string, expected int) (Reply, error) {
	s := foldReply(text)
	if s == "skip" {
		return Reply{Skip: true}, nil
	}
	if expected <= 0 || s == "" {
		return Reply{}, eris.Wrapf(ErrUnparseable, "review: %q for %d positions", text, expected)
	}

	var (
		verdicts []model.Verdict
		ok       bool
	)
	switch {
	case strings.HasPrefix(s, "all"):
		verdicts, ok = parseAll(strings.TrimLeft(s[len("all"):], " "), expected)
	case s[0] >= '0' && s[0] <= '9':
		verdicts, ok = parseNumbered(s, expected)
	default:
		verdicts, ok = parseSequence(s, expected)
	}
	if !ok {
		return Reply{}, eris.Wrapf(ErrUnparseable, "review: %q for %d positions", text, expected)
	}
	return Reply{Verdicts: verdicts}, nil
}

// foldReply case-folds, normalises, drops emoji variation selectors and
// collapses each whitespace run to one space. Spaces are kept so "1 1y"
// stays two tokens instead of reading as position 11.
func foldReply(text string) string {
	folded := cases.Fold().String(norm.NFC.String(text))
	folded = strings.Map(func(r rune) rune {
		if r == '\uFE0F' || r == '\uFE0E' {
			return -1
		}
		return r
	}, folded)
	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), " ")
}

// nextMarker matches a marker at the start of s.
func nextMarker(s string) (model.Verdict, int, bool) {
	for _, m := range markers {
		if strings.HasPrefix(s, m.text) {
			return m.verdict, len(m.text), true
		}
	}
	return "", 0, false
}

func parseAll(rest string, expected int) ([]model.Verdict, bool) {
	v, n, ok := nextMarker(rest)
	if !ok || n != len(rest) {
		return nil, false
	}
	out := make([]model.Verdict, expected)
	for i := range out {
		out[i] = v
	}
	return out, true
}

func parseNumbered(s string, expected int) ([]model.Verdict, bool) {
	out := make([]model.Verdict, expected)
	seen := 0
	for s = strings.TrimLeft(s, " "); len(s) > 0; s = strings.TrimLeft(s, " ") {
		end := 0
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == 0 {
			return nil, false
		}
		pos, err := strconv.Atoi(s[:end])
		if err != nil || pos < 1 || pos > expected || out[pos-1] != "" {
			return nil, false
		}
		rest := strings.TrimLeft(s[end:], " ")
		v, n, ok := nextMarker(rest)
		if !ok {
			return nil, false
		}
		out[pos-1] = v
		seen++
		s = rest[n:]
	}
	return out, seen == expected
}

func parseSequence(s string, expected int) ([]model.Verdict, bool) {
	out := make([]model.Verdict, 0, expected)
	for s = strings.TrimLeft(s, " "); len(s) > 0; s = strings.TrimLeft(s, " ") {
		v, n, ok := nextMarker(s)
		if !ok {
			return nil, false
		}
		out = append(out, v)
		s = s[n:]
	}
	return out, len(out) == expected
}
