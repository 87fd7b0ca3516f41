package lockable

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToValue converts a Go value into a cty.Value. Generic containers decoded
// from YAML, TOML or JSON (map[string]any, []any) are converted element by
// element; concrete types go through gocty's implied type.
func ToValue(v any) (cty.Value, error) {
	switch tv := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return tv, nil
	case string:
		return cty.StringVal(tv), nil
	case bool:
		return cty.BoolVal(tv), nil
	case int:
		return cty.NumberIntVal(int64(tv)), nil
	case int64:
		return cty.NumberIntVal(tv), nil
	case float64:
		return cty.NumberFloatVal(tv), nil
	case map[string]any:
		if len(tv) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(tv))
		for k, ev := range tv {
			cv, err := ToValue(ev)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in attribute '%s': %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	case map[any]any:
		m := make(map[string]any, len(tv))
		for k, ev := range tv {
			m[fmt.Sprint(k)] = ev
		}
		return ToValue(m)
	case []any:
		if len(tv) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(tv))
		for i, ev := range tv {
			cv, err := ToValue(ev)
			if err != nil {
				return cty.NilVal, fmt.Errorf("at index %d: %w", i, err)
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return ToValue(rv.Elem().Interface())
	}

	ty, err := gocty.ImpliedType(v)
	if err == nil {
		return gocty.ToCtyValue(v, ty)
	}

	// Containers of interface values, such as TOML's []map[string]any, have
	// no implied type; convert them element by element instead.
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return ToValue(elems)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return ToValue(m)
		}
	}
	return cty.NilVal, fmt.Errorf("unable to infer cty.Type for %T: %w", v, err)
}

// ToNative converts a cty.Value to its most natural Go counterpart. Whole
// numbers that fit become int64, other numbers float64. Null and unknown
// values become nil.
func ToNative(v cty.Value) (any, error) {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	v, _ = v.Unmark()

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert cty.Number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			nv, err := ToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			k, ev := it.Element()
			key := k.AsString()
			nv, err := ToNative(ev)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key, err)
			}
			out[key] = nv
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported cty type for native conversion: %s", ty.FriendlyName())
	}
}

// Native returns every attribute of o in its Go form, keyed by name.
func (o *Object) Native() (map[string]any, error) {
	nv, err := ToNative(o.Value())
	if err != nil {
		return nil, err
	}
	m, _ := nv.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
