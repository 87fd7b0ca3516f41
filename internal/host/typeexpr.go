package host

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/hostcfg/internal/ctxlog"
)

// typeExprToCtyType converts an HCL type expression such as `string` or
// `list(number)` into its cty.Type. A nil expression means any.
func typeExprToCtyType(ctx context.Context, expr hcl.Expression) (cty.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return cty.DynamicPseudoType, nil
	}
	// An absent optional attribute decodes to a static null.
	if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsNull() {
		return cty.DynamicPseudoType, nil
	}

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type constructor.", "call", v.Name)
		if v.Name == "object" {
			return objectTypeExpr(ctx, v)
		}
		if v.Name == "tuple" {
			return tupleTypeExpr(ctx, v)
		}

		if len(v.Args) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("type constructors (list, map, set) require exactly one argument, got %d", len(v.Args))
		}
		elem, err := typeExprToCtyType(ctx, v.Args[0])
		if err != nil {
			return cty.DynamicPseudoType, err
		}
		switch v.Name {
		case "list":
			return cty.List(elem), nil
		case "map":
			return cty.Map(elem), nil
		case "set":
			return cty.Set(elem), nil
		default:
			return cty.DynamicPseudoType, fmt.Errorf("unknown type constructor %q", v.Name)
		}

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		switch name := v.Traversal.RootName(); name {
		case "string":
			return cty.String, nil
		case "number":
			return cty.Number, nil
		case "bool":
			return cty.Bool, nil
		case "any":
			return cty.DynamicPseudoType, nil
		default:
			return cty.DynamicPseudoType, fmt.Errorf("unknown primitive type %q", name)
		}

	default:
		return cty.DynamicPseudoType, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

func objectTypeExpr(ctx context.Context, call *hclsyntax.FunctionCallExpr) (cty.Type, error) {
	if len(call.Args) != 1 {
		return cty.DynamicPseudoType, fmt.Errorf("the object() type constructor requires exactly one argument, got %d", len(call.Args))
	}
	cons, ok := call.Args[0].(*hclsyntax.ObjectConsExpr)
	if !ok {
		return cty.DynamicPseudoType, fmt.Errorf("the argument to object() must be an object literal like { key = type }, got %T", call.Args[0])
	}

	attrs := make(map[string]cty.Type, len(cons.Items))
	for _, item := range cons.Items {
		key := objectKey(item.KeyExpr)
		if key == "" {
			return cty.DynamicPseudoType, fmt.Errorf("invalid key in object type: keys must be identifiers or quoted strings")
		}
		ty, err := typeExprToCtyType(ctx, item.ValueExpr)
		if err != nil {
			return cty.DynamicPseudoType, fmt.Errorf("in object attribute '%s': %w", key, err)
		}
		attrs[key] = ty
	}
	return cty.Object(attrs), nil
}

func tupleTypeExpr(ctx context.Context, call *hclsyntax.FunctionCallExpr) (cty.Type, error) {
	if len(call.Args) != 1 {
		return cty.DynamicPseudoType, fmt.Errorf("the tuple() type constructor requires exactly one argument, got %d", len(call.Args))
	}
	cons, ok := call.Args[0].(*hclsyntax.TupleConsExpr)
	if !ok {
		return cty.DynamicPseudoType, fmt.Errorf("the argument to tuple() must be a list of types, got %T", call.Args[0])
	}
	elems := make([]cty.Type, len(cons.Exprs))
	for i, e := range cons.Exprs {
		ty, err := typeExprToCtyType(ctx, e)
		if err != nil {
			return cty.DynamicPseudoType, fmt.Errorf("in tuple element %d: %w", i, err)
		}
		elems[i] = ty
	}
	return cty.Tuple(elems), nil
}

func objectKey(expr hclsyntax.Expression) string {
	wrapped, ok := expr.(*hclsyntax.ObjectConsKeyExpr)
	if !ok {
		return ""
	}
	switch k := wrapped.Wrapped.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(k.Traversal) == 1 {
			return k.Traversal.RootName()
		}
	case *hclsyntax.TemplateExpr:
		if len(k.Parts) == 1 {
			if lit, ok := k.Parts[0].(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type() == cty.String {
				return lit.Val.AsString()
			}
		}
	}
	return ""
}
