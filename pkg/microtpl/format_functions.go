package microtpl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl/script"
)

// Date layouts tried, in order, when a date arrives as a string
var commonDateFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseDate accepts time values, Unix timestamps (seconds, or milliseconds
// when large) and the strings in commonDateFormats.
func parseDate(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("cannot parse nil time pointer")
		}
		return *v, nil
	case string:
		for _, layout := range commonDateFormats {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("could not parse date string: %q", v)
	}

	n, ok := script.Primitive(value).(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot use %s as a date", script.TypeOf(value))
	}
	ts := int64(n)
	if ts > 1e10 {
		return time.UnixMilli(ts).UTC(), nil
	}
	return time.Unix(ts, 0).UTC(), nil
}

// datePatternTokens maps pattern letters (yyyy, MM, dd, ...) to Go layout
// fragments, longest first.
var datePatternTokens = []struct {
	pattern string
	layout  string
}{
	{"yyyy", "2006"}, {"yy", "06"},
	{"MMMM", "January"}, {"MMM", "Jan"}, {"MM", "01"}, {"M", "1"},
	{"dd", "02"}, {"d", "2"},
	{"EEEE", "Monday"}, {"EEE", "Mon"},
	{"HH", "15"},
	{"hh", "03"}, {"h", "3"},
	{"mm", "04"}, {"m", "4"},
	{"ss", "05"}, {"s", "5"},
	{"SSS", "000"},
	{"a", "PM"},
	{"XXX", "Z07:00"}, {"Z", "-0700"},
}

// translateDatePattern turns a pattern such as "dd.MM.yyyy HH:mm" into a Go
// layout. Text in single quotes is copied literally.
func translateDatePattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}

		matched := false
		for _, tok := range datePatternTokens {
			if strings.HasPrefix(pattern[i:], tok.pattern) {
				b.WriteString(tok.layout)
				i += len(tok.pattern)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// groupDigits formats value with the given decimals and the separators of
// locale (en, de, fr).
func groupDigits(value float64, decimals int, locale string) string {
	lang := strings.ToLower(strings.Split(locale, "-")[0])
	thousands, point := ",", "."
	switch lang {
	case "de":
		thousands, point = ".", ","
	case "fr":
		thousands, point = " ", ","
	}

	result := strconv.FormatFloat(value, 'f', decimals, 64)
	intPart, decPart, _ := strings.Cut(result, ".")

	negative := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(digit)
	}
	if decPart != "" {
		b.WriteString(point)
		b.WriteString(decPart)
	}
	return b.String()
}

func numberArg(name string, v interface{}) (float64, error) {
	n := script.ToNumber(v)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%s: cannot format %q as a number", name, script.ToString(v))
	}
	return n, nil
}

func toTitleCase(s string) string {
	runes := []rune(s)
	start := true
	for i, r := range runes {
		if unicode.IsSpace(r) {
			start = true
			continue
		}
		if start {
			runes[i] = unicode.ToUpper(r)
		} else {
			runes[i] = unicode.ToLower(r)
		}
		start = false
	}
	return string(runes)
}

// formatFunctions returns number, currency, date and titlecase. Each one
// passes null through so that interpolation prints nothing.
func formatFunctions() []Function {
	return []Function{
		// number(value, decimals?, locale?)
		NewSimpleFunction("number", 1, 3, func(args ...interface{}) (interface{}, error) {
			if script.Primitive(args[0]) == nil {
				return nil, nil
			}
			value, err := numberArg("number", args[0])
			if err != nil {
				return nil, err
			}
			decimals, locale := 0, "en"
			if len(args) > 1 {
				decimals = int(script.ToNumber(args[1]))
				if decimals < 0 || decimals > 20 {
					return nil, fmt.Errorf("number: decimals must be between 0 and 20, got %d", decimals)
				}
			}
			if len(args) > 2 && script.Primitive(args[2]) != nil {
				locale = script.ToString(args[2])
			}
			return groupDigits(value, decimals, locale), nil
		}),

		// currency(value, locale?)
		NewSimpleFunction("currency", 1, 2, func(args ...interface{}) (interface{}, error) {
			if script.Primitive(args[0]) == nil {
				return nil, nil
			}
			value, err := numberArg("currency", args[0])
			if err != nil {
				return nil, err
			}
			locale := "en-US"
			if len(args) > 1 && script.Primitive(args[1]) != nil {
				locale = script.ToString(args[1])
			}

			switch strings.ToLower(locale) {
			case "en-gb":
				return "£" + groupDigits(value, 2, locale), nil
			case "de", "de-de", "fr", "fr-fr":
				return groupDigits(value, 2, locale) + " €", nil
			case "ja", "ja-jp":
				return "¥" + groupDigits(value, 0, "en"), nil
			default:
				return "$" + groupDigits(value, 2, "en"), nil
			}
		}),

		// date(pattern, value)
		NewSimpleFunction("date", 2, 2, func(args ...interface{}) (interface{}, error) {
			if script.Primitive(args[1]) == nil {
				return nil, nil
			}
			t, err := parseDate(args[1])
			if err != nil {
				return nil, fmt.Errorf("date: %w", err)
			}
			return t.Format(translateDatePattern(script.ToString(args[0]))), nil
		}),

		NewSimpleFunction("titlecase", 1, 1, func(args ...interface{}) (interface{}, error) {
			if script.Primitive(args[0]) == nil {
				return nil, nil
			}
			return toTitleCase(script.ToString(args[0])), nil
		}),
	}
}
