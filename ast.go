package lvs

// Pos is a source position, 1-based line and column.
type Pos struct{ Line, Col int }

// CompKind distinguishes the three comp alternatives in the grammar
// (spec.md §6): a quoted literal, a bare identifier (pattern reference),
// or a rule reference.
type CompKind uint8

const (
	CompLiteral CompKind = iota
	CompTag
	CompRule
)

// PatComp is one element of a name pattern (the "comp" production).
type PatComp struct {
	Kind    CompKind
	Literal string // CompLiteral
	Tag     string // CompTag: the bare identifier text, including any leading "_"
	Rule    string // CompRule: the referenced rule's name, without "#"
	Pos     Pos
}

// FnArgKind distinguishes a Fn argument: STR or TAG_ID per the grammar's
// fn_args production.
type FnArgKind uint8

const (
	FnArgLiteral FnArgKind = iota
	FnArgTag
)

// FnArgAST is one argument to a $fn(...) call, before resolution.
type FnArgAST struct {
	Kind    FnArgKind
	Literal string
	Tag     string
}

// ConsOptKind distinguishes the three cons_opt alternatives.
type ConsOptKind uint8

const (
	ConsOptLiteral ConsOptKind = iota
	ConsOptTag
	ConsOptFn
)

// ConsOptAST is one option of a cons_disj (one ConstraintOption, before
// resolution).
type ConsOptAST struct {
	Kind    ConsOptKind
	Literal string
	Tag     string
	FnName  string
	FnArgs  []FnArgAST
}

// ConsTermAST is "TAG_ID : cons_disj": the constraint placed on one
// named pattern occurrence within a single constraint-set alternative.
type ConsTermAST struct {
	Tag     string
	Options []ConsOptAST
}

// ConsSetAST is one "{ cons_term, ... }" alternative (one element of the
// top-level "|"-separated list in cons_cnf).
type ConsSetAST []ConsTermAST

// RuleDef is one "#name : def_expr" definition (spec.md §6).
type RuleDef struct {
	Name        string
	Pattern     []PatComp
	ConsSets    []ConsSetAST // nil/empty means "no & clause": one implicit empty alternative
	SigningList []string     // rule names after "<=", "|"-separated
	Pos         Pos
}

// File is the parsed AST of one LVS source file: an ordered list of
// rule definitions (source order, not topological order).
type File struct {
	Rules []RuleDef
}
