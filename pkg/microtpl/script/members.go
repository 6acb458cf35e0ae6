package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

func arg(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func method(name string, call func(args []interface{}) (interface{}, error)) *boundMethod {
	return &boundMethod{name: name, call: call}
}

// relativeIndex resolves a slice() style bound, counting negative values
// from the end and clamping to [0, n].
func relativeIndex(v interface{}, n int, fallback int) int {
	if Primitive(v) == nil {
		return fallback
	}
	f := ToNumber(v)
	if math.IsNaN(f) {
		return 0
	}
	i := int(math.Trunc(math.Max(math.Min(f, float64(n)), -float64(n))))
	if i < 0 {
		i += n
	}
	return i
}

func clampIndex(v interface{}, n int, fallback int) int {
	if Primitive(v) == nil {
		return fallback
	}
	f := ToNumber(v)
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > float64(n):
		return n
	}
	return int(f)
}

func runeIndex(s string, byteIndex int) float64 {
	if byteIndex < 0 {
		return -1
	}
	return float64(len([]rune(s[:byteIndex])))
}

func stringMethod(s string, name string) *boundMethod {
	switch name {
	case "toUpperCase":
		return method(name, func([]interface{}) (interface{}, error) { return strings.ToUpper(s), nil })
	case "toLowerCase":
		return method(name, func([]interface{}) (interface{}, error) { return strings.ToLower(s), nil })
	case "trim":
		return method(name, func([]interface{}) (interface{}, error) { return strings.TrimSpace(s), nil })
	case "trimStart", "trimLeft":
		return method(name, func([]interface{}) (interface{}, error) { return strings.TrimLeft(s, " \t\r\n\v\f"), nil })
	case "trimEnd", "trimRight":
		return method(name, func([]interface{}) (interface{}, error) { return strings.TrimRight(s, " \t\r\n\v\f"), nil })
	case "toString", "valueOf":
		return method(name, func([]interface{}) (interface{}, error) { return s, nil })

	case "indexOf":
		return method(name, func(args []interface{}) (interface{}, error) {
			runes := []rune(s)
			from := clampIndex(arg(args, 1), len(runes), 0)
			rest := string(runes[from:])
			i := strings.Index(rest, ToString(arg(args, 0)))
			if i < 0 {
				return float64(-1), nil
			}
			return runeIndex(rest, i) + float64(from), nil
		})
	case "lastIndexOf":
		return method(name, func(args []interface{}) (interface{}, error) {
			return runeIndex(s, strings.LastIndex(s, ToString(arg(args, 0)))), nil
		})
	case "includes":
		return method(name, func(args []interface{}) (interface{}, error) {
			return strings.Contains(s, ToString(arg(args, 0))), nil
		})
	case "startsWith":
		return method(name, func(args []interface{}) (interface{}, error) {
			return strings.HasPrefix(s, ToString(arg(args, 0))), nil
		})
	case "endsWith":
		return method(name, func(args []interface{}) (interface{}, error) {
			return strings.HasSuffix(s, ToString(arg(args, 0))), nil
		})

	case "charAt":
		return method(name, func(args []interface{}) (interface{}, error) {
			runes := []rune(s)
			i := int(ToNumber(arg(args, 0)))
			if i < 0 || i >= len(runes) {
				return "", nil
			}
			return string(runes[i]), nil
		})
	case "slice":
		return method(name, func(args []interface{}) (interface{}, error) {
			runes := []rune(s)
			start := relativeIndex(arg(args, 0), len(runes), 0)
			end := relativeIndex(arg(args, 1), len(runes), len(runes))
			if start >= end {
				return "", nil
			}
			return string(runes[start:end]), nil
		})
	case "substring":
		return method(name, func(args []interface{}) (interface{}, error) {
			runes := []rune(s)
			start := clampIndex(arg(args, 0), len(runes), 0)
			end := clampIndex(arg(args, 1), len(runes), len(runes))
			if start > end {
				start, end = end, start
			}
			return string(runes[start:end]), nil
		})

	case "split":
		return method(name, func(args []interface{}) (interface{}, error) {
			var parts []string
			switch sep := arg(args, 0); {
			case Primitive(sep) == nil:
				parts = []string{s}
			case ToString(sep) == "":
				for _, r := range s {
					parts = append(parts, string(r))
				}
			default:
				parts = strings.Split(s, ToString(sep))
			}
			if limit := arg(args, 1); Primitive(limit) != nil {
				if n := int(ToNumber(limit)); n >= 0 && n < len(parts) {
					parts = parts[:n]
				}
			}
			items := make([]interface{}, len(parts))
			for i, p := range parts {
				items[i] = p
			}
			return &Array{Items: items}, nil
		})
	case "replace":
		return method(name, func(args []interface{}) (interface{}, error) {
			return strings.Replace(s, ToString(arg(args, 0)), ToString(arg(args, 1)), 1), nil
		})
	case "replaceAll":
		return method(name, func(args []interface{}) (interface{}, error) {
			return strings.ReplaceAll(s, ToString(arg(args, 0)), ToString(arg(args, 1))), nil
		})
	case "repeat":
		return method(name, func(args []interface{}) (interface{}, error) {
			n := ToNumber(arg(args, 0))
			if math.IsNaN(n) {
				n = 0
			}
			if n < 0 || math.IsInf(n, 0) {
				return nil, fmt.Errorf("invalid count value: %s", formatNumber(n))
			}
			n = math.Trunc(n)
			if err := checkLength(float64(len(s)) * n); err != nil {
				return nil, err
			}
			return strings.Repeat(s, int(n)), nil
		})
	case "padStart", "padEnd":
		return method(name, func(args []interface{}) (interface{}, error) {
			width := ToNumber(arg(args, 0))
			fill := " "
			if f := arg(args, 1); Primitive(f) != nil {
				fill = ToString(f)
			}
			missing := width - float64(utf8.RuneCountInString(s))
			if math.IsNaN(missing) || missing <= 0 || fill == "" {
				return s, nil
			}
			// a fill rune takes at most utf8.UTFMax bytes
			if err := checkLength(float64(len(s)) + missing*utf8.UTFMax); err != nil {
				return nil, err
			}
			n := int(missing)
			fillRunes := []rune(fill)
			pad := []rune(strings.Repeat(fill, n/len(fillRunes)+1))[:n]
			if name == "padStart" {
				return string(pad) + s, nil
			}
			return s + string(pad), nil
		})
	}
	return nil
}

func numberMethod(n float64, name string) *boundMethod {
	switch name {
	case "toFixed":
		return method(name, func(args []interface{}) (interface{}, error) {
			digits := int(ToNumber(arg(args, 0)))
			if digits < 0 || digits > 100 {
				return nil, fmt.Errorf("toFixed() digits argument must be between 0 and 100")
			}
			if math.Abs(n) >= 1e21 || math.IsNaN(n) || math.IsInf(n, 0) {
				return formatNumber(n), nil
			}
			return strconv.FormatFloat(n, 'f', digits, 64), nil
		})
	case "toString":
		return method(name, func([]interface{}) (interface{}, error) { return formatNumber(n), nil })
	}
	return nil
}

// arrayMethod returns the built-in method name of arr. Mutating methods are
// only offered when the array is owned by the script; Go slices reached
// through data are read-only.
func arrayMethod(arr *Array, name string, owned bool) *boundMethod {
	switch name {
	case "join":
		return method(name, func(args []interface{}) (interface{}, error) {
			sep := ","
			if s := arg(args, 0); Primitive(s) != nil {
				sep = ToString(s)
			}
			return joinItems(arr.Items, sep), nil
		})
	case "toString":
		return method(name, func([]interface{}) (interface{}, error) { return joinItems(arr.Items, ","), nil })
	case "indexOf":
		return method(name, func(args []interface{}) (interface{}, error) {
			for i, item := range arr.Items {
				if StrictEquals(item, arg(args, 0)) {
					return float64(i), nil
				}
			}
			return float64(-1), nil
		})
	case "includes":
		return method(name, func(args []interface{}) (interface{}, error) {
			for _, item := range arr.Items {
				if StrictEquals(item, arg(args, 0)) {
					return true, nil
				}
			}
			return false, nil
		})
	case "slice":
		return method(name, func(args []interface{}) (interface{}, error) {
			start := relativeIndex(arg(args, 0), len(arr.Items), 0)
			end := relativeIndex(arg(args, 1), len(arr.Items), len(arr.Items))
			if start >= end {
				return &Array{Items: []interface{}{}}, nil
			}
			return &Array{Items: append([]interface{}(nil), arr.Items[start:end]...)}, nil
		})
	case "concat":
		return method(name, func(args []interface{}) (interface{}, error) {
			items := append([]interface{}(nil), arr.Items...)
			for _, a := range args {
				if other, ok := a.(*Array); ok {
					items = append(items, other.Items...)
					continue
				}
				items = append(items, a)
			}
			return &Array{Items: items}, nil
		})
	case "push":
		if !owned {
			return nil
		}
		return method(name, func(args []interface{}) (interface{}, error) {
			arr.Items = append(arr.Items, args...)
			return float64(len(arr.Items)), nil
		})
	case "pop":
		if !owned {
			return nil
		}
		return method(name, func([]interface{}) (interface{}, error) {
			if len(arr.Items) == 0 {
				return nil, nil
			}
			last := arr.Items[len(arr.Items)-1]
			arr.Items = arr.Items[:len(arr.Items)-1]
			return last, nil
		})
	}
	return nil
}
