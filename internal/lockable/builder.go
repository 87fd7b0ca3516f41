package lockable

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// TagName is the struct tag read by SetStruct and Decode.
const TagName = "cfg"

// Builder declares attributes while an object is under construction. Once
// the object is locked a retained Builder behaves like Object.Set.
type Builder struct {
	obj *Object
}

// Set declares name, or overwrites it if it was already declared.
func (b *Builder) Set(name string, v cty.Value) error {
	return b.obj.Set(name, v)
}

// SetGo declares name with a converted Go value.
func (b *Builder) SetGo(name string, v any) error {
	return b.obj.SetGo(name, v)
}

// SetStruct declares one attribute per exported field of v, which must be a
// struct or a pointer to one. The attribute name is the field's cfg tag, or
// the lowercased field name when the tag is absent; fields tagged "-" are
// skipped. Every failing field is reported.
func (b *Builder) SetStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("cannot declare attributes from a nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("expected a struct, got %T", v)
	}

	var result *multierror.Error
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "" {
			continue
		}
		if err := b.SetGo(name, rv.Field(i).Interface()); err != nil {
			result = multierror.Append(result, fmt.Errorf("field %s: %w", field.Name, err))
		}
	}
	return result.ErrorOrNil()
}

func fieldName(f reflect.StructField) string {
	tag, ok := f.Tag.Lookup(TagName)
	if !ok {
		return strings.ToLower(f.Name)
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

// validName requires names that configuration expressions can reference
// as host.<name>.
func validName(name string) error {
	if !hclsyntax.ValidIdentifier(name) {
		return fmt.Errorf("invalid attribute name %q", name)
	}
	return nil
}
