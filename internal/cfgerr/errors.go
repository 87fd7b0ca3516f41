// Package cfgerr defines the error taxonomy shared by the loading and
// applying packages. Every concrete error matches one of the sentinel values
// through errors.Is, so callers can branch on the category without caring
// about the concrete type.
package cfgerr

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

var (
	// ErrIO marks a file that could not be opened or read.
	ErrIO = errors.New("io error")
	// ErrLoad marks a unit that could not be parsed or executed.
	ErrLoad = errors.New("load error")
	// ErrAttribute marks an attempt to grow a locked object's attribute set.
	ErrAttribute = errors.New("attribute error")
)

// IOError reports a filesystem failure while hashing or loading a file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports ErrIO so callers can use errors.Is without type assertions.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// LoadError reports a unit that failed to parse, decode or execute. Diags
// holds the HCL diagnostics when the failure came from the HCL toolchain;
// Err holds any other cause (for example an *IOError).
type LoadError struct {
	Path   string
	UnitID string
	Diags  hcl.Diagnostics
	Err    error
}

func (e *LoadError) Error() string {
	cause := e.Err
	if cause == nil && e.Diags.HasErrors() {
		cause = e.Diags
	}
	if e.UnitID != "" {
		return fmt.Sprintf("failed to load unit %s (%s): %v", e.UnitID, e.Path, cause)
	}
	return fmt.Sprintf("failed to load %q: %v", e.Path, cause)
}

func (e *LoadError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Diags.HasErrors() {
		return e.Diags
	}
	return nil
}

// Is reports ErrLoad so callers can use errors.Is without type assertions.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// AttributeError reports a write to an attribute name that was not declared
// before the object was locked.
type AttributeError struct {
	Kind string
	Name string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("cannot add new attribute %q to instances of %s", e.Name, e.Kind)
}

// Is reports ErrAttribute so callers can use errors.Is without type assertions.
func (e *AttributeError) Is(target error) bool { return target == ErrAttribute }
