// Package lockable provides an attribute object whose set of names is fixed
// once construction finishes.
//
// During construction a Builder may declare attributes freely. When the
// build function returns the object is locked: existing attributes can still
// be reassigned to any value of any type, but writing a name that was never
// declared fails with a *cfgerr.AttributeError. Values are cty values so
// configuration expressions can read and produce them directly.
package lockable

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/hostcfg/internal/cfgerr"
)

// Object is a named set of cty attributes. It is safe for concurrent use.
type Object struct {
	kind string

	mu     sync.RWMutex
	names  []string
	values map[string]cty.Value
	locked bool
}

// New constructs an object of the given kind. build runs while the object
// is still open; the object is locked as soon as build returns, whether or
// not it returned an error. A nil build yields a locked object with no
// attributes.
func New(kind string, build func(*Builder) error) (*Object, error) {
	o := &Object{
		kind:   kind,
		values: make(map[string]cty.Value),
	}
	var err error
	if build != nil {
		err = build(&Builder{obj: o})
	}
	o.lock()
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", kind, err)
	}
	return o, nil
}

func (o *Object) lock() {
	o.mu.Lock()
	o.locked = true
	o.mu.Unlock()
}

// Kind returns the name used in attribute errors.
func (o *Object) Kind() string { return o.kind }

// Locked reports whether construction has finished.
func (o *Object) Locked() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.locked
}

// Set assigns v to an existing attribute. On a locked object an undeclared
// name is rejected with *cfgerr.AttributeError.
func (o *Object) Set(name string, v cty.Value) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setLocked(name, v)
}

// setLocked assumes o.mu is held for writing.
func (o *Object) setLocked(name string, v cty.Value) error {
	if _, ok := o.values[name]; !ok {
		if o.locked {
			return &cfgerr.AttributeError{Kind: o.kind, Name: name}
		}
		if err := validName(name); err != nil {
			return err
		}
		o.names = append(o.names, name)
	}
	if v == cty.NilVal {
		v = cty.NullVal(cty.DynamicPseudoType)
	}
	o.values[name] = v
	return nil
}

// SetGo converts a Go value with ToValue and assigns it.
func (o *Object) SetGo(name string, v any) error {
	cv, err := ToValue(v)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	return o.Set(name, cv)
}

// Get returns the attribute's value and whether it is declared.
func (o *Object) Get(name string) (cty.Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[name]
	return v, ok
}

// GetGo returns the attribute converted to its natural Go form.
func (o *Object) GetGo(name string) (any, error) {
	v, ok := o.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s has no attribute %q", o.kind, name)
	}
	return ToNative(v)
}

// Has reports whether name is declared.
func (o *Object) Has(name string) bool {
	_, ok := o.Get(name)
	return ok
}

// Names returns the declared attribute names in declaration order.
func (o *Object) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Value returns a snapshot of every attribute as a cty object. Later writes
// to o do not affect the snapshot.
func (o *Object) Value() cty.Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.values) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(o.values))
	for k, v := range o.values {
		attrs[k] = v
	}
	return cty.ObjectVal(attrs)
}

func (o *Object) String() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return fmt.Sprintf("%s%v", o.kind, o.names)
}
