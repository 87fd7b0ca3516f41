package host

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/hostcfg/internal/cfgerr"
	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/lockable"
)

// Schema lists the attributes a host is constructed with.
type Schema struct {
	Kind       string
	Attributes []*Attribute
}

// Attribute is one declared host attribute and its initial value.
type Attribute struct {
	Name        string
	Type        cty.Type
	Default     cty.Value
	Description string
}

// NewHost builds a host declaring every schema attribute in order.
func (s *Schema) NewHost() (*Host, error) {
	return New(s.Kind, func(b *lockable.Builder) error {
		for _, a := range s.Attributes {
			if err := b.Set(a.Name, a.Default); err != nil {
				return err
			}
		}
		return nil
	})
}

type hclSchemaFile struct {
	Kind       *string               `hcl:"kind,optional"`
	Attributes []*hclAttributeSchema `hcl:"attribute,block"`
}

type hclAttributeSchema struct {
	Name        string         `hcl:"name,label"`
	Default     hcl.Expression `hcl:"default,optional"`
	Type        hcl.Expression `hcl:"type,optional"`
	Description *string        `hcl:"description,optional"`
}

// LoadSchema reads a host schema from an .hcl, .yaml, .yml or .toml file.
func LoadSchema(ctx context.Context, fs afero.Fs, path string) (*Schema, error) {
	logger := ctxlog.FromContext(ctx)

	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &cfgerr.IOError{Op: "read", Path: path, Err: err}
	}

	var s *Schema
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		s, err = parseHCLSchema(ctx, src, path)
	case ".yaml", ".yml":
		s, err = parseYAMLSchema(src)
	case ".toml":
		s, err = parseTOMLSchema(src)
	default:
		return nil, fmt.Errorf("unsupported host schema format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load host schema %s: %w", path, err)
	}
	if s.Kind == "" {
		s.Kind = DefaultKind
	}
	logger.Debug("Loaded host schema.", "path", path, "kind", s.Kind, "attributes", len(s.Attributes))
	return s, nil
}

func parseHCLSchema(ctx context.Context, src []byte, path string) (*Schema, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, diags
	}
	var root hclSchemaFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}

	s := &Schema{}
	if root.Kind != nil {
		s.Kind = *root.Kind
	}

	var result *multierror.Error
	seen := make(map[string]struct{}, len(root.Attributes))
	for _, a := range root.Attributes {
		if _, dup := seen[a.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("attribute %q is declared more than once", a.Name))
			continue
		}
		seen[a.Name] = struct{}{}

		attr, err := translateAttribute(ctx, a)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		s.Attributes = append(s.Attributes, attr)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return s, nil
}

func translateAttribute(ctx context.Context, a *hclAttributeSchema) (*Attribute, error) {
	ty, err := typeExprToCtyType(ctx, a.Type)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
	}

	def := cty.NullVal(ty)
	if a.Default != nil {
		v, diags := a.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q default: %w", a.Name, diags)
		}
		if !v.IsNull() {
			def, err = convert.Convert(v, ty)
			if err != nil {
				return nil, fmt.Errorf("attribute %q default does not match type %s: %w", a.Name, ty.FriendlyName(), err)
			}
		}
	}

	attr := &Attribute{Name: a.Name, Type: ty, Default: def}
	if a.Description != nil {
		attr.Description = *a.Description
	}
	return attr, nil
}

// parseYAMLSchema walks the mapping node directly so attributes keep the
// order they were written in.
func parseYAMLSchema(src []byte) (*Schema, error) {
	s := &Schema{}
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return s, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping at the top level, got line %d", root.Line)
	}

	var result *multierror.Error
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, node := root.Content[i], root.Content[i+1]
		var raw any
		if err := node.Decode(&raw); err != nil {
			result = multierror.Append(result, fmt.Errorf("attribute %q: %w", key.Value, err))
			continue
		}
		if err := s.add(key.Value, raw); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseTOMLSchema(src []byte) (*Schema, error) {
	var raw map[string]any
	md, err := toml.NewDecoder(bytes.NewReader(src)).Decode(&raw)
	if err != nil {
		return nil, err
	}

	s := &Schema{}
	var result *multierror.Error
	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		if err := s.add(key[0], raw[key[0]]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return s, nil
}

// add appends an attribute whose type is implied by its initial value.
func (s *Schema) add(name string, raw any) error {
	v, err := lockable.ToValue(raw)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	s.Attributes = append(s.Attributes, &Attribute{Name: name, Type: v.Type(), Default: v})
	return nil
}
