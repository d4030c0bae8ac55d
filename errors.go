package lvs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind classifies the errors the core can raise, per spec.md §7.
type ErrorKind uint8

const (
	// KindSyntax is raised by the parser; carries a source position.
	KindSyntax ErrorKind = iota
	// KindSemantic is raised by the resolver, chain expander or tree
	// builder: cyclic rule reference, unknown rule reference, unresolved
	// signing reference. A constraint naming a pattern that is never bound
	// before it on a path is not rejected at compile time.
	KindSemantic
	// KindModel is raised on decode: bad version, broken structure,
	// invariant violation.
	KindModel
	// KindMissingUserFn is raised when a schema references a predicate
	// the host never supplied.
	KindMissingUserFn
	// KindPredicate wraps a recovered panic from a host predicate.
	KindPredicate
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindSemantic:
		return "semantic error"
	case KindModel:
		return "model error"
	case KindMissingUserFn:
		return "missing user function"
	case KindPredicate:
		return "predicate error"
	default:
		return "error"
	}
}

// Error is the interface satisfied by every error the core raises.
// It extends the standard error interface with the offending ErrorKind
// and, where applicable, the wrapped cause.
type Error interface {
	error
	Kind() ErrorKind
	Inner() error
}

// errorImpl is the single concrete type backing every exported error kind.
type errorImpl struct {
	kind  ErrorKind
	msg   string
	inner error

	// Position is set for KindSyntax errors; zero otherwise.
	Line, Col int
}

func (err *errorImpl) Kind() ErrorKind { return err.kind }
func (err *errorImpl) Inner() error    { return err.inner }

func (err *errorImpl) Error() string {
	prefix := ""
	if err.kind == KindSyntax && (err.Line != 0 || err.Col != 0) {
		prefix = fmt.Sprintf("%d:%d: ", err.Line, err.Col)
	}
	if err.inner != nil {
		return fmt.Sprintf("%s%s: %s", prefix, err.msg, err.inner.Error())
	}
	return prefix + err.msg
}

// errorf formats a new error of the given kind.
func errorf(kind ErrorKind, format string, a ...interface{}) *errorImpl {
	return &errorImpl{kind: kind, msg: fmt.Sprintf(format, a...)}
}

// wrapErrorf formats a new error of the given kind wrapping another.
func wrapErrorf(kind ErrorKind, err error, format string, a ...interface{}) *errorImpl {
	return &errorImpl{kind: kind, msg: fmt.Sprintf(format, a...), inner: err}
}

// syntaxErrorf formats a KindSyntax error carrying a source position.
func syntaxErrorf(line, col int, format string, a ...interface{}) *errorImpl {
	return &errorImpl{kind: KindSyntax, msg: fmt.Sprintf(format, a...), Line: line, Col: col}
}

// SyntaxError is returned by Parse/ParseAll. Use errors.As to recover it.
type SyntaxError struct{ *errorImpl }

// SemanticError is returned by Compile for cyclic references and unknown
// rule names in a name pattern or a signing list. Compile does not check
// whether a constraint names a pattern that is bound before it; such an
// option simply does not hold at match time. When more than one
// independent violation is found they are
// aggregated with multierror and Inner() returns the *multierror.Error.
type SemanticError struct{ *errorImpl }

// ModelError is returned by Decode: unrecognized version, broken TLV
// structure, or an I1-I4 invariant violation. Multiple violations found
// during a single decode are aggregated with multierror.
type ModelError struct{ *errorImpl }

// MissingUserFnError is returned when a schema is asked to verify
// completeness against a set of supplied predicates and a CNF
// references one that is absent.
type MissingUserFnError struct{ *errorImpl }

// PredicateError wraps a recovered panic raised by a host-supplied
// predicate during matching. See Schema.MatchStrict for the policy
// under which this surfaces instead of being treated as "does not hold".
type PredicateError struct{ *errorImpl }

func newSemanticError(msgs ...error) *SemanticError {
	if len(msgs) == 1 {
		return &SemanticError{wrapErrorf(KindSemantic, msgs[0], "semantic error")}
	}
	var merr *multierror.Error
	for _, m := range msgs {
		merr = multierror.Append(merr, m)
	}
	return &SemanticError{wrapErrorf(KindSemantic, merr, "semantic error")}
}

func newMissingUserFnError(names []string) *MissingUserFnError {
	return &MissingUserFnError{errorf(KindMissingUserFn,
		"schema references user function(s) %v not supplied in Model.UserFns", names)}
}

func newModelError(msgs ...error) *ModelError {
	if len(msgs) == 1 {
		return &ModelError{wrapErrorf(KindModel, msgs[0], "invalid model")}
	}
	var merr *multierror.Error
	for _, m := range msgs {
		merr = multierror.Append(merr, m)
	}
	return &ModelError{wrapErrorf(KindModel, merr, "invalid model")}
}

// Logger receives optional diagnostic traces from the matcher. It is
// never consulted for control flow.
type Logger interface {
	Logf(format string, a ...interface{})
}

type dummyLogger struct{}

func (*dummyLogger) Logf(format string, a ...interface{}) {}

type stdlibLogger struct{}

func (*stdlibLogger) Logf(format string, a ...interface{}) { stdLogPrintf(format, a...) }

var log Logger = &dummyLogger{}

// EnableLogging routes diagnostic traces to the standard log package.
// For more flexibility, see SetLogger.
func EnableLogging() { SetLogger(&stdlibLogger{}) }

// SetLogger installs logger as the destination for diagnostic traces.
// Passing nil disables logging.
func SetLogger(logger Logger) {
	if logger == nil {
		log = &dummyLogger{}
		return
	}
	log = logger
}
