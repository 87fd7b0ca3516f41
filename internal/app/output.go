package app

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/hostcfg/internal/host"
)

// report is the YAML rendering of a host.
type report struct {
	Kind       string         `yaml:"kind"`
	Attributes map[string]any `yaml:"attributes"`
	Applied    []string       `yaml:"applied"`
}

func (a *App) render(h *host.Host) error {
	var (
		data []byte
		err  error
	)
	switch a.config.Output {
	case "":
		return nil
	case "json":
		data, err = renderJSON(h)
	case "yaml":
		data, err = renderYAML(h)
	default:
		return fmt.Errorf("unknown output format %q", a.config.Output)
	}
	if err != nil {
		return fmt.Errorf("failed to render host: %w", err)
	}
	_, err = a.outW.Write(data)
	return err
}

func renderJSON(h *host.Host) ([]byte, error) {
	obj := h.Object()
	attrs := make(map[string]cty.Value)
	for _, name := range obj.Names() {
		v, _ := obj.Get(name)
		// A dynamically typed null would be marshaled with a type wrapper.
		if v.Type() == cty.DynamicPseudoType {
			v = cty.NullVal(cty.EmptyObject)
		}
		attrs[name] = v
	}
	attrVal := cty.EmptyObjectVal
	if len(attrs) > 0 {
		attrVal = cty.ObjectVal(attrs)
	}

	applied := cty.ListValEmpty(cty.String)
	if hashes := h.AppliedHashes(); len(hashes) > 0 {
		vals := make([]cty.Value, len(hashes))
		for i, d := range hashes {
			vals[i] = cty.StringVal(d.String())
		}
		applied = cty.ListVal(vals)
	}

	doc := cty.ObjectVal(map[string]cty.Value{
		"kind":       cty.StringVal(obj.Kind()),
		"attributes": attrVal,
		"applied":    applied,
	})
	raw, err := ctyjson.Marshal(doc, doc.Type())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func renderYAML(h *host.Host) ([]byte, error) {
	obj := h.Object()
	attrs, err := obj.Native()
	if err != nil {
		return nil, err
	}
	r := report{Kind: obj.Kind(), Attributes: attrs, Applied: []string{}}
	for _, d := range h.AppliedHashes() {
		r.Applied = append(r.Applied, d.String())
	}
	return yaml.Marshal(&r)
}
