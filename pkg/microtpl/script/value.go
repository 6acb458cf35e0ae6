package script

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Values flowing through the interpreter are nil (null and undefined alike),
// bool, float64, string, *Array, map[string]interface{}, callables, or any
// Go value reached through data. Go numbers, strings and booleans of any
// named type are normalized by Primitive before use.

// Array is the mutable array produced by array literals.
type Array struct {
	Items []interface{}
}

// NewArray creates an Array holding items.
func NewArray(items ...interface{}) *Array {
	return &Array{Items: items}
}

// NativeFunc is a Go function exposed to scripts.
type NativeFunc func(args ...interface{}) (interface{}, error)

// Intrinsic is a Go function that also receives the caller's scope.
type Intrinsic func(env *Env, args []interface{}) (interface{}, error)

// boundMethod is a built-in method already bound to its receiver.
type boundMethod struct {
	name string
	call func(args []interface{}) (interface{}, error)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Primitive normalizes Go scalars to the interpreter's primitive types and
// nil pointers to nil. Any other value is returned unchanged.
func Primitive(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, bool, float64, string:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case NativeFunc, Intrinsic, *boundMethod, *Array:
		if reflect.ValueOf(x).IsNil() {
			return nil
		}
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		if rv.IsNil() {
			return nil
		}
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	}
	return v
}

// ToString converts a value to its string form. nil becomes "null".
func ToString(v interface{}) string {
	switch x := Primitive(v).(type) {
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(x)
	case string:
		return x
	case *Array:
		return joinItems(x.Items, ",")
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}

	if IsCallable(v) {
		return "function"
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return joinItems(sliceItems(rv), ",")
	}
	return "[object Object]"
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		if exp == "" {
			exp = "0"
		}
		return mantissa + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinItems(items []interface{}, sep string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		if Primitive(item) != nil {
			parts[i] = ToString(item)
		}
	}
	return strings.Join(parts, sep)
}

// ToNumber converts a value to a float64. nil is 0, and strings that are
// not numeric are NaN.
func ToNumber(v interface{}) float64 {
	switch x := Primitive(v).(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return x
	case string:
		return stringToNumber(x)
	case *Array:
		switch len(x.Items) {
		case 0:
			return 0
		case 1:
			return ToNumber(x.Items[0])
		}
	}
	return math.NaN()
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n, err := strconv.ParseUint(s[2:], 16, 64); err == nil {
			return float64(n)
		}
		return math.NaN()
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || strings.ContainsAny(s, "iInN_") {
		return math.NaN()
	}
	return n
}

// Truthy reports whether a value counts as true in a condition.
func Truthy(v interface{}) bool {
	switch x := Primitive(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

// TypeOf returns the name typeof yields for a value.
func TypeOf(v interface{}) string {
	switch Primitive(v).(type) {
	case nil:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	}
	if IsCallable(v) {
		return "function"
	}
	return "object"
}

// IsCallable reports whether a value can be called.
func IsCallable(v interface{}) bool {
	switch x := Primitive(v).(type) {
	case nil:
		return false
	case NativeFunc, Intrinsic, *boundMethod:
		return true
	default:
		return reflect.ValueOf(x).Kind() == reflect.Func
	}
}

// StrictEquals implements ===.
func StrictEquals(a, b interface{}) bool {
	pa, pb := Primitive(a), Primitive(b)
	switch x := pa.(type) {
	case nil:
		return pb == nil
	case bool:
		y, ok := pb.(bool)
		return ok && x == y
	case float64:
		y, ok := pb.(float64)
		return ok && x == y
	case string:
		y, ok := pb.(string)
		return ok && x == y
	}
	return sameObject(pa, pb)
}

// LooseEquals implements ==, converting between strings, numbers and
// booleans.
func LooseEquals(a, b interface{}) bool {
	pa, pb := Primitive(a), Primitive(b)
	if pa == nil || pb == nil {
		return pa == nil && pb == nil
	}

	ka, kb := category(pa), category(pb)
	switch {
	case ka == kb:
		return StrictEquals(pa, pb)
	case ka == "boolean" || kb == "boolean":
		if ka == "boolean" {
			return LooseEquals(ToNumber(pa), pb)
		}
		return LooseEquals(pa, ToNumber(pb))
	case ka == "object":
		return LooseEquals(ToString(pa), pb)
	case kb == "object":
		return LooseEquals(pa, ToString(pb))
	default:
		return ToNumber(pa) == ToNumber(pb)
	}
}

func category(v interface{}) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	default:
		return "object"
	}
}

func sameObject(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Ptr:
		return ra.Pointer() == rb.Pointer()
	}
	if ra.Type().Comparable() {
		return a == b
	}
	return false
}

// callValue invokes a callable with the caller's scope.
func callValue(env *Env, callee interface{}, args []interface{}) (interface{}, error) {
	switch f := Primitive(callee).(type) {
	case NativeFunc:
		return f(args...)
	case Intrinsic:
		return f(env, args)
	case *boundMethod:
		return f.call(args)
	}
	rv := reflect.ValueOf(callee)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", TypeOf(callee))
	}
	return callReflect(rv, args)
}

// callReflect calls an arbitrary Go function, converting arguments to its
// parameter types. A trailing error result is returned as the error.
func callReflect(fn reflect.Value, args []interface{}) (interface{}, error) {
	t := fn.Type()
	numIn := t.NumIn()

	in := make([]reflect.Value, 0, len(args))
	for i := 0; i < numIn; i++ {
		if t.IsVariadic() && i == numIn-1 {
			elem := t.In(i).Elem()
			for j := i; j < len(args); j++ {
				v, err := convertTo(args[j], elem)
				if err != nil {
					return nil, fmt.Errorf("argument %d: %w", j+1, err)
				}
				in = append(in, v)
			}
			break
		}
		var arg interface{}
		if i < len(args) {
			arg = args[i]
		}
		v, err := convertTo(arg, t.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}

	out := fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			err, _ := out[0].Interface().(error)
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		if t.Out(len(out)-1) == errorType {
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				return nil, err
			}
		}
		return out[0].Interface(), nil
	}
}

// convertTo adapts a script value to a Go type for a reflective call.
func convertTo(v interface{}, t reflect.Type) (reflect.Value, error) {
	if Primitive(v) == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(int64(ToNumber(v)))
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out.SetUint(uint64(ToNumber(v)))
		return out, nil
	case reflect.Float32, reflect.Float64:
		out.SetFloat(ToNumber(v))
		return out, nil
	case reflect.String:
		out.SetString(ToString(v))
		return out, nil
	case reflect.Bool:
		out.SetBool(Truthy(v))
		return out, nil
	case reflect.Slice:
		if arr, ok := v.(*Array); ok {
			out = reflect.MakeSlice(t, len(arr.Items), len(arr.Items))
			for i, item := range arr.Items {
				elem, err := convertTo(item, t.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(elem)
			}
			return out, nil
		}
	}

	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", TypeOf(v), t)
}

// getMember reads obj[key]. Missing members are nil.
func getMember(obj, key interface{}) (interface{}, error) {
	value, _, err := member(obj, key)
	return value, err
}

// lookupProperty resolves a name against a with-statement object.
func lookupProperty(obj interface{}, name string) (interface{}, bool) {
	if Primitive(obj) == nil {
		return nil, false
	}
	value, found, err := member(obj, name)
	if err != nil {
		return nil, false
	}
	return value, found
}

func member(obj, key interface{}) (interface{}, bool, error) {
	name := ToString(key)

	switch o := Primitive(obj).(type) {
	case nil:
		return nil, false, fmt.Errorf("cannot read property '%s' of null", name)
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(o)), true, nil
		}
		if i, ok := arrayIndex(key); ok {
			runes := []rune(o)
			if i < len(runes) {
				return string(runes[i]), true, nil
			}
			return nil, false, nil
		}
		if m := stringMethod(o, name); m != nil {
			return m, true, nil
		}
		return nil, false, nil
	case float64:
		if m := numberMethod(o, name); m != nil {
			return m, true, nil
		}
		return nil, false, nil
	case bool:
		return nil, false, nil
	case *Array:
		return arrayMember(o, key, name, true)
	case map[string]interface{}:
		value, ok := o[name]
		return value, ok, nil
	}

	return reflectMember(reflect.ValueOf(obj), key, name)
}

func arrayMember(arr *Array, key interface{}, name string, owned bool) (interface{}, bool, error) {
	if name == "length" {
		return float64(len(arr.Items)), true, nil
	}
	if i, ok := arrayIndex(key); ok {
		if i < len(arr.Items) {
			return arr.Items[i], true, nil
		}
		return nil, false, nil
	}
	if m := arrayMethod(arr, name, owned); m != nil {
		return m, true, nil
	}
	return nil, false, nil
}

func reflectMember(rv reflect.Value, key interface{}, name string) (interface{}, bool, error) {
	if method := findMethod(rv, name); method.IsValid() {
		return method.Interface(), true, nil
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, fmt.Errorf("cannot read property '%s' of null", name)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if field, ok := findField(rv, name); ok {
			return field.Interface(), true, nil
		}
		if method := findMethod(rv, name); method.IsValid() {
			return method.Interface(), true, nil
		}
		return nil, false, nil

	case reflect.Map:
		k, err := convertTo(key, rv.Type().Key())
		if err != nil {
			return nil, false, nil
		}
		value := rv.MapIndex(k)
		if !value.IsValid() {
			return nil, false, nil
		}
		return value.Interface(), true, nil

	case reflect.Slice, reflect.Array:
		return arrayMember(&Array{Items: sliceItems(rv)}, key, name, false)
	}
	return nil, false, nil
}

func sliceItems(rv reflect.Value) []interface{} {
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

// exportedName turns a script property name into the Go identifier it most
// likely refers to.
func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func findMethod(rv reflect.Value, name string) reflect.Value {
	if !rv.IsValid() || name == "" {
		return reflect.Value{}
	}
	if m := rv.MethodByName(name); m.IsValid() {
		return m
	}
	return rv.MethodByName(exportedName(name))
}

// findField matches a json tag first, then the field name, then the name
// with its first letter upper-cased.
func findField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name {
			return rv.Field(i), true
		}
	}
	for _, candidate := range []string{name, exportedName(name)} {
		if f, ok := t.FieldByName(candidate); ok && f.IsExported() {
			return rv.FieldByIndex(f.Index), true
		}
	}
	return reflect.Value{}, false
}

func arrayIndex(key interface{}) (int, bool) {
	switch k := Primitive(key).(type) {
	case float64:
		if k >= 0 && k == math.Trunc(k) && k < math.MaxInt32 {
			return int(k), true
		}
	case string:
		if k == "" || (len(k) > 1 && k[0] == '0') {
			return 0, false
		}
		if n, err := strconv.Atoi(k); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// setMember writes obj[key] = value.
func setMember(obj, key, value interface{}) error {
	name := ToString(key)

	switch o := Primitive(obj).(type) {
	case nil:
		return fmt.Errorf("cannot set property '%s' of null", name)
	case map[string]interface{}:
		o[name] = value
		return nil
	case *Array:
		i, ok := arrayIndex(key)
		if !ok {
			return fmt.Errorf("cannot set property '%s' of array", name)
		}
		for len(o.Items) <= i {
			o.Items = append(o.Items, nil)
		}
		o.Items[i] = value
		return nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return fmt.Errorf("cannot set property '%s' of null", name)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		field, ok := findField(rv, name)
		if !ok || !field.CanSet() {
			return fmt.Errorf("cannot set property '%s' of %s", name, rv.Type())
		}
		v, err := convertTo(value, field.Type())
		if err != nil {
			return err
		}
		field.Set(v)
		return nil
	case reflect.Map:
		k, err := convertTo(key, rv.Type().Key())
		if err != nil {
			return err
		}
		v, err := convertTo(value, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.SetMapIndex(k, v)
		return nil
	case reflect.Slice:
		i, ok := arrayIndex(key)
		if !ok || i >= rv.Len() {
			return fmt.Errorf("cannot set property '%s' of %s", name, rv.Type())
		}
		v, err := convertTo(value, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.Index(i).Set(v)
		return nil
	}
	return fmt.Errorf("cannot set property '%s' of %s", name, TypeOf(obj))
}

var errNotIterable = errors.New("value is not iterable")

// iterValues lists what for-of visits. Maps are visited in key order.
func iterValues(v interface{}) ([]interface{}, error) {
	switch x := Primitive(v).(type) {
	case nil:
		return nil, nil
	case *Array:
		return append([]interface{}(nil), x.Items...), nil
	case string:
		items := make([]interface{}, 0, len(x))
		for _, r := range x {
			items = append(items, string(r))
		}
		return items, nil
	case map[string]interface{}:
		items := make([]interface{}, 0, len(x))
		for _, k := range sortedKeys(x) {
			items = append(items, x[k])
		}
		return items, nil
	case float64, bool:
		return nil, fmt.Errorf("%s: %w", TypeOf(v), errNotIterable)
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return sliceItems(rv), nil
	case reflect.Map:
		keys := mapKeys(rv)
		items := make([]interface{}, len(keys))
		for i, k := range keys {
			items[i] = rv.MapIndex(k).Interface()
		}
		return items, nil
	}
	return nil, fmt.Errorf("%s: %w", TypeOf(v), errNotIterable)
}

// iterKeys lists what for-in visits: indices of sequences, sorted map keys,
// and the exported field names of structs.
func iterKeys(v interface{}) ([]interface{}, error) {
	indices := func(n int) []interface{} {
		keys := make([]interface{}, n)
		for i := range keys {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}

	switch x := Primitive(v).(type) {
	case nil, float64, bool:
		return nil, nil
	case *Array:
		return indices(len(x.Items)), nil
	case string:
		return indices(utf8.RuneCountInString(x)), nil
	case map[string]interface{}:
		keys := sortedKeys(x)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return indices(rv.Len()), nil
	case reflect.Map:
		keys := mapKeys(rv)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = ToString(k.Interface())
		}
		return out, nil
	case reflect.Struct:
		var out []interface{}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
				name = tag
			}
			out = append(out, name)
		}
		return out, nil
	}
	return nil, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mapKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return ToString(keys[i].Interface()) < ToString(keys[j].Interface())
	})
	return keys
}
