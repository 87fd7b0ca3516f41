package loader

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/lockable"
)

// scope is the load-time part of a configure function's evaluation context.
type scope struct {
	local cty.Value
	unit  cty.Value
	funcs map[string]function.Function
}

type assignment struct {
	name string
	expr hcl.Expression
}

// configureFunc is a compiled configure block.
type configureFunc struct {
	unitID  string
	name    string
	when    hcl.Expression
	assigns []assignment
	scope   *scope
}

func compile(unitID string, block *configureBlock, s *scope) (*configureFunc, hcl.Diagnostics) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	list := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		list = append(list, a)
	}
	sortBySource(list)

	fn := &configureFunc{unitID: unitID, name: block.Name, when: block.When, scope: s}
	diags = append(diags, checkRoots(block.When, rootHost, rootLocal, rootUnit)...)
	for _, a := range list {
		diags = append(diags, checkRoots(a.Expr, rootHost, rootLocal, rootUnit)...)
		fn.assigns = append(fn.assigns, assignment{name: a.Name, expr: a.Expr})
	}
	return fn, diags
}

// invoke evaluates every expression against one snapshot of obj, then
// assigns the results in source order. A write to an undeclared attribute
// stops the function; assignments made before it stay applied.
func (f *configureFunc) invoke(ctx context.Context, obj *lockable.Object) error {
	logger := ctxlog.FromContext(ctx).With("unit", f.unitID, "function", f.name)

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			rootHost:  obj.Value(),
			rootLocal: f.scope.local,
			rootUnit:  f.scope.unit,
		},
		Functions: f.scope.funcs,
	}

	run, err := f.enabled(evalCtx)
	if err != nil {
		return err
	}
	if !run {
		logger.Debug("Skipping configure function, condition is false.")
		return nil
	}

	values := make([]cty.Value, len(f.assigns))
	var diags hcl.Diagnostics
	for i, a := range f.assigns {
		v, d := a.expr.Value(evalCtx)
		diags = append(diags, d...)
		values[i] = v
	}
	if diags.HasErrors() {
		return fmt.Errorf("failed to evaluate configure %q in unit %s: %w", f.name, f.unitID, diags)
	}

	for i, a := range f.assigns {
		if err := obj.Set(a.name, values[i]); err != nil {
			return fmt.Errorf("configure %q in unit %s: %w", f.name, f.unitID, err)
		}
		logger.Debug("Assigned attribute.", "attribute", a.name)
	}
	return nil
}

func (f *configureFunc) enabled(evalCtx *hcl.EvalContext) (bool, error) {
	v, diags := f.when.Value(evalCtx)
	if diags.HasErrors() {
		return false, fmt.Errorf("failed to evaluate condition of configure %q in unit %s: %w", f.name, f.unitID, diags)
	}
	if v.IsNull() {
		return true, nil
	}
	v, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("condition of configure %q in unit %s must be a bool: %w", f.name, f.unitID, err)
	}
	if !v.IsKnown() || v.IsNull() {
		return false, fmt.Errorf("condition of configure %q in unit %s has no known value", f.name, f.unitID)
	}
	return v.True(), nil
}
