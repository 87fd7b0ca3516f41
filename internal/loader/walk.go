package loader

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/registry"
)

// fileRoot is the top-level schema of a unit. It has no remain field, so any
// other block or attribute is reported by the decoder.
type fileRoot struct {
	Locals    []*localsBlock    `hcl:"locals,block"`
	Configure []*configureBlock `hcl:"configure,block"`
}

type localsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type configureBlock struct {
	Name string `hcl:"name,label"`
	// When is a null expression when the attribute is absent.
	When hcl.Expression `hcl:"when,optional"`
	Body hcl.Body       `hcl:",remain"`
}

// Roots a unit may reference.
const (
	rootHost  = "host"
	rootLocal = "local"
	rootUnit  = "unit"
)

// execute parses src and walks it, marking each configure block into c.
func (l *Loader) execute(ctx context.Context, unit *Unit, src []byte, c *registry.Collector) hcl.Diagnostics {
	logger := ctxlog.FromContext(ctx)

	file, diags := hclparse.NewParser().ParseHCL(src, unit.Path)
	if diags.HasErrors() {
		return diags
	}

	var root fileRoot
	if d := gohcl.DecodeBody(file.Body, nil, &root); d.HasErrors() {
		return append(diags, d...)
	}

	locals, d := l.evalLocals(root.Locals, unitValue(unit))
	diags = append(diags, d...)
	if diags.HasErrors() {
		return diags
	}

	s := &scope{
		local: locals,
		unit:  unitValue(unit),
		funcs: l.funcs,
	}
	for _, block := range root.Configure {
		if c.Has(block.Name) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate configure block",
				Detail:   fmt.Sprintf("A configure block named %q was already defined in this unit.", block.Name),
				Subject:  block.Body.MissingItemRange().Ptr(),
			})
			continue
		}
		fn, d := compile(unit.ID, block, s)
		diags = append(diags, d...)
		if d.HasErrors() {
			continue
		}
		c.Mark(block.Name, fn.invoke)
		logger.Debug("Marked configure function.", "unit", unit.ID, "function", block.Name)
	}
	return diags
}

// evalLocals evaluates every local in source order. A local can see the
// locals defined before it.
func (l *Loader) evalLocals(blocks []*localsBlock, unit cty.Value) (cty.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	var attrs []*hcl.Attribute
	for _, b := range blocks {
		a, d := b.Body.JustAttributes()
		diags = append(diags, d...)
		for _, attr := range a {
			attrs = append(attrs, attr)
		}
	}
	if diags.HasErrors() {
		return cty.EmptyObjectVal, diags
	}
	sortBySource(attrs)

	values := make(map[string]cty.Value, len(attrs))
	for _, attr := range attrs {
		if _, dup := values[attr.Name]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate local value",
				Detail:   fmt.Sprintf("A local value named %q was already defined in this unit.", attr.Name),
				Subject:  attr.NameRange.Ptr(),
			})
			continue
		}
		if d := checkRoots(attr.Expr, rootLocal, rootUnit); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{
				rootLocal: objectOrEmpty(values),
				rootUnit:  unit,
			},
			Functions: l.funcs,
		}
		v, d := attr.Expr.Value(evalCtx)
		diags = append(diags, d...)
		if d.HasErrors() {
			continue
		}
		values[attr.Name] = v
	}
	return objectOrEmpty(values), diags
}

// checkRoots reports any variable reference outside the allowed roots.
func checkRoots(expr hcl.Expression, allowed ...string) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, tr := range expr.Variables() {
		root := tr.RootName()
		ok := false
		for _, a := range allowed {
			if root == a {
				ok = true
				break
			}
		}
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid reference",
				Detail:   fmt.Sprintf("%q cannot be referenced here; available roots are %v.", root, allowed),
				Subject:  tr.SourceRange().Ptr(),
			})
		}
	}
	return diags
}

func sortBySource(attrs []*hcl.Attribute) {
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Range.Start.Byte < attrs[j].Range.Start.Byte
	})
}

func objectOrEmpty(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	out := make(map[string]cty.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return cty.ObjectVal(out)
}
