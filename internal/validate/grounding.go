package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Jeffawe/LedgerMind/internal/answer"
)

var trivialToken = regexp.MustCompile(`^\$?\d$`)

// ExtractNumericTokens returns the numeric tokens in text in order of
// appearance, e.g. "$487.45", "1,200", "30". A token must not touch a
// letter, digit, underscore or slash on either side.
func ExtractNumericTokens(text string) []string {
	var tokens []string
	for i := 0; i < len(text); {
		if (text[i] == '$' || isDigit(text[i])) && (i == 0 || !blocksToken(lastRune(text[:i]))) {
			if end, ok := matchNumber(text, i); ok {
				tokens = append(tokens, text[i:end])
				i = end
				continue
			}
		}
		i++
	}
	return tokens
}

// matchNumber returns the end of the number starting at start. Candidates
// are tried in backtracking order: one to three digits with ",ddd" groups
// first, then a plain digit run, each longest first and with an optional
// fraction. The first candidate not followed by a blocking rune wins.
func matchNumber(text string, start int) (int, bool) {
	p := start
	if text[p] == '$' {
		p++
	}
	digits := digitRun(text, p)
	if digits == 0 {
		return 0, false
	}
	for k := min(3, digits); k >= 1; k-- {
		ends := []int{p + k}
		for e := p + k; isGroup(text, e); e += 4 {
			ends = append(ends, e+4)
		}
		for g := len(ends) - 1; g >= 0; g-- {
			if end, ok := withFraction(text, ends[g]); ok {
				return end, true
			}
		}
	}
	for n := digits; n >= 1; n-- {
		if end, ok := withFraction(text, p+n); ok {
			return end, true
		}
	}
	return 0, false
}

func withFraction(text string, end int) (int, bool) {
	if end < len(text) && text[end] == '.' {
		for n := digitRun(text, end+1); n >= 1; n-- {
			if unblocked(text, end+1+n) {
				return end + 1 + n, true
			}
		}
	}
	if unblocked(text, end) {
		return end, true
	}
	return 0, false
}

func isGroup(text string, i int) bool {
	return i+4 <= len(text) && text[i] == ',' && digitRun(text[:i+4], i+1) == 3
}

func digitRun(text string, i int) int {
	n := 0
	for i+n < len(text) && isDigit(text[i+n]) {
		n++
	}
	return n
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func unblocked(text string, end int) bool {
	return end >= len(text) || !blocksToken(firstRune(text[end:]))
}

func blocksToken(r rune) bool {
	return r == '_' || r == '/' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// SupportedTokens returns every textual form under which the supporting
// numbers may appear in free text: the raw value, its integer rounding and
// two-decimal form, each with and without a "$" prefix and with thousands
// separators. Currency values also admit the unsigned forms, since a minus
// sign is never part of an extracted token.
func SupportedTokens(numbers []answer.NumericEvidence) map[string]struct{} {
	set := make(map[string]struct{})
	for _, n := range numbers {
		addForms(set, n.Value)
		if isCurrency(n.Unit) && n.Value < 0 {
			addForms(set, math.Abs(n.Value))
		}
	}
	return set
}

func addForms(set map[string]struct{}, v float64) {
	raw := strconv.FormatFloat(v, 'f', -1, 64)
	forms := []string{
		raw,
		strconv.FormatInt(int64(math.Round(v)), 10),
		strconv.FormatFloat(v, 'f', 2, 64),
	}
	if v == math.Trunc(v) {
		forms = append(forms, raw+".0")
	}
	for _, f := range forms {
		for _, g := range []string{f, groupThousands(f)} {
			set[g] = struct{}{}
			set["$"+g] = struct{}{}
		}
	}
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

func isCurrency(unit string) bool {
	if unit == "$" {
		return true
	}
	if len(unit) != 3 {
		return false
	}
	for _, r := range unit {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

type textField struct {
	path string
	text string
}

func textFields(a *answer.EngineAnswer) []textField {
	var fields []textField
	if a.Summary.Headline != "" {
		fields = append(fields, textField{"summary.headline", a.Summary.Headline})
	}
	for i, b := range a.Summary.Bullets {
		if b != "" {
			fields = append(fields, textField{indexed("summary.bullets", i), b})
		}
	}
	if ra := a.RecommendedAction; ra != nil {
		if ra.Title != "" {
			fields = append(fields, textField{"recommended_action.title", ra.Title})
		}
		for i, s := range ra.Next7Days {
			fields = append(fields, textField{indexed("recommended_action.next_7_days", i), s})
		}
		for i, s := range ra.Next30Days {
			fields = append(fields, textField{indexed("recommended_action.next_30_days", i), s})
		}
	}
	for i, r := range a.RisksAndTradeoffs {
		fields = append(fields, textField{indexed("risks_and_tradeoffs", i), r})
	}
	return fields
}

func indexed(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
