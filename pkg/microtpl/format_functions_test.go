package microtpl

import (
	"testing"
	"time"
)

func TestFormatFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	tuesday := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name string
		fn   string
		args []interface{}
		want interface{}
	}{
		{name: "number default", fn: "number", args: []interface{}{1234567.891}, want: "1,234,568"},
		{name: "number decimals", fn: "number", args: []interface{}{1234567.891, 2}, want: "1,234,567.89"},
		{name: "number german", fn: "number", args: []interface{}{1234.5, 1, "de"}, want: "1.234,5"},
		{name: "number french", fn: "number", args: []interface{}{1234.5, 2, "fr-FR"}, want: "1 234,50"},
		{name: "number negative", fn: "number", args: []interface{}{-1234}, want: "-1,234"},
		{name: "number small", fn: "number", args: []interface{}{999}, want: "999"},
		{name: "number numeric string", fn: "number", args: []interface{}{"42.5", 1}, want: "42.5"},
		{name: "number null", fn: "number", args: []interface{}{nil}, want: nil},
		{name: "currency default", fn: "currency", args: []interface{}{1234.5}, want: "$1,234.50"},
		{name: "currency british", fn: "currency", args: []interface{}{1234.5, "en-GB"}, want: "£1,234.50"},
		{name: "currency german", fn: "currency", args: []interface{}{1234.5, "de"}, want: "1.234,50 €"},
		{name: "currency yen", fn: "currency", args: []interface{}{1500, "ja"}, want: "¥1,500"},
		{name: "date string", fn: "date", args: []interface{}{"dd.MM.yyyy", "2024-03-05"}, want: "05.03.2024"},
		{name: "date time value", fn: "date", args: []interface{}{"EEEE, MMMM d 'at' HH:mm", tuesday}, want: "Tuesday, March 5 at 14:07"},
		{name: "date pointer", fn: "date", args: []interface{}{"yyyy-MM-dd HH:mm:ss", &tuesday}, want: "2024-03-05 14:07:09"},
		{name: "date unix seconds", fn: "date", args: []interface{}{"yyyy-MM-dd", 1700000000}, want: "2023-11-14"},
		{name: "date unix millis", fn: "date", args: []interface{}{"yyyy-MM-dd", 1700000000000.0}, want: "2023-11-14"},
		{name: "date twelve hour", fn: "date", args: []interface{}{"h:mm a", tuesday}, want: "2:07 PM"},
		{name: "date null", fn: "date", args: []interface{}{"yyyy", nil}, want: nil},
		{name: "titlecase", fn: "titlecase", args: []interface{}{"hello wORLD  again"}, want: "Hello World  Again"},
		{name: "titlecase null", fn: "titlecase", args: []interface{}{nil}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := registry.GetFunction(tt.fn)
			if !ok {
				t.Fatalf("function %s not registered", tt.fn)
			}
			got, err := fn.Call(tt.args...)
			if err != nil {
				t.Fatalf("%s() error = %v", tt.fn, err)
			}
			if got != tt.want {
				t.Errorf("%s() = %#v, want %#v", tt.fn, got, tt.want)
			}
		})
	}
}

func TestFormatFunctionErrors(t *testing.T) {
	registry := NewFunctionRegistry()

	tests := []struct {
		fn   string
		args []interface{}
	}{
		{fn: "number", args: []interface{}{"abc"}},
		{fn: "number", args: []interface{}{1, 99}},
		{fn: "currency", args: []interface{}{"ten"}},
		{fn: "date", args: []interface{}{"yyyy", "not a date"}},
		{fn: "date", args: []interface{}{"yyyy", true}},
	}

	for _, tt := range tests {
		fn, _ := registry.GetFunction(tt.fn)
		if _, err := fn.Call(tt.args...); err == nil {
			t.Errorf("%s(%v) error = nil", tt.fn, tt.args)
		}
	}
}

func TestTranslateDatePattern(t *testing.T) {
	tests := map[string]string{
		"yyyy-MM-dd":            "2006-01-02",
		"dd/MM/yy":              "02/01/06",
		"MMM d, yyyy":           "Jan 2, 2006",
		"HH:mm:ss.SSS":          "15:04:05.000",
		"'Today is' EEEE":       "Today is Monday",
		"yyyy-MM-dd'T'HH:mmXXX": "2006-01-02T15:04Z07:00",
	}
	for pattern, want := range tests {
		if got := translateDatePattern(pattern); got != want {
			t.Errorf("translateDatePattern(%q) = %q, want %q", pattern, got, want)
		}
	}
}

func TestFormatFunctionsInTemplate(t *testing.T) {
	tmpl, err := Compile("<%= titlecase(name) %> owes <%= currency(total) %> since <%= date('d MMM yyyy', since) %>")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got, err := tmpl.Render(map[string]interface{}{
		"name":  "ada lovelace",
		"total": 1999.5,
		"since": "2024-01-15",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := "Ada Lovelace owes $1,999.50 since 15 Jan 2024"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}
