package lvs

import "bytes"

// Component is the external-collaborator boundary for a single NDN name
// component. The core never parses or constructs component bytes itself;
// it only compares them and reads their type tag, per spec.md §1.
type Component interface {
	// Type returns the NDN TLV type tag of this component.
	Type() uint64
	// Bytes returns the raw value bytes of this component (not
	// including the type tag or length).
	Bytes() []byte
}

// ComponentEqual reports whether a and b are byte-equal including their
// type tag, per spec.md §3 ("Equality is byte-equality including the
// type tag").
func ComponentEqual(a, b Component) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type() == b.Type() && bytes.Equal(a.Bytes(), b.Bytes())
}

// Name is the external-collaborator boundary for an NDN name: an
// ordered, 0-indexed sequence of Components.
type Name interface {
	Len() int
	At(i int) Component
}

// GenericType is the NDN GenericNameComponent TLV type (0x08), used by
// SimpleComponent when no other type is specified.
const GenericType = 0x08

// SimpleComponent is a minimal, dependency-free Component implementation
// used by tests, the CLI and callers that have no NDN codec of their own
// to plug in. Grounded on the teacher's address.go: a small fixed-shape
// value type with nothing but accessors.
type SimpleComponent struct {
	typ   uint64
	value []byte
}

// NewComponent builds a SimpleComponent of the given type and value.
func NewComponent(typ uint64, value []byte) SimpleComponent {
	return SimpleComponent{typ: typ, value: value}
}

// Comp builds a SimpleComponent of GenericType from a string value; the
// common case for LVS literal path segments ("ndn", "blog", ...).
func Comp(value string) SimpleComponent {
	return SimpleComponent{typ: GenericType, value: []byte(value)}
}

func (c SimpleComponent) Type() uint64   { return c.typ }
func (c SimpleComponent) Bytes() []byte  { return c.value }
func (c SimpleComponent) String() string { return string(c.value) }

// SimpleName is a minimal, dependency-free Name implementation backed by
// a plain slice of SimpleComponent.
type SimpleName []SimpleComponent

func (n SimpleName) Len() int          { return len(n) }
func (n SimpleName) At(i int) Component { return n[i] }

// ParseURI parses a slash-separated URI of the form "/a/b/c" into a
// SimpleName of GenericType components. It performs no percent-decoding
// or NDN marker parsing; it exists only to make tests and the CLI
// convenient, not to serve as a wire codec (out of scope, spec.md §1).
func ParseURI(uri string) SimpleName {
	if uri == "" || uri == "/" {
		return SimpleName{}
	}
	start := 0
	if uri[0] == '/' {
		start = 1
	}
	var comps SimpleName
	seg := start
	for i := start; i <= len(uri); i++ {
		if i == len(uri) || uri[i] == '/' {
			if i > seg {
				comps = append(comps, Comp(uri[seg:i]))
			}
			seg = i + 1
		}
	}
	return comps
}
