package lvs

import "github.com/hashicorp/go-multierror"

// Parser turns LVS source text into a File AST (spec.md §4.1, §6).
type Parser struct {
	lex  *Lexer
	tok  Token
	err  error
}

// NewParser returns a Parser over src.
func NewParser(src string) *Parser {
	p := &Parser{lex: NewLexer(src)}
	p.advance()
	return p
}

func (p *Parser) advance() {
	if p.err != nil {
		return
	}
	tok, err := p.lex.Next()
	if err != nil {
		p.err = err
		return
	}
	p.tok = tok
}

func (p *Parser) fail(format string, a ...interface{}) error {
	return &SyntaxError{syntaxErrorf(p.tok.Pos.Line, p.tok.Pos.Col, format, a...)}
}

func (p *Parser) expect(kind TokKind, what string) (Token, error) {
	if p.err != nil {
		return Token{}, p.err
	}
	if p.tok.Kind != kind {
		return Token{}, p.fail("expected %s", what)
	}
	t := p.tok
	p.advance()
	return t, p.err
}

// Parse parses the whole source into a File, stopping at the first
// syntax error.
func (p *Parser) Parse() (*File, error) {
	f := &File{}
	for p.err == nil && p.tok.Kind != TokEOF {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		f.Rules = append(f.Rules, *rule)
	}
	if p.err != nil {
		return nil, p.err
	}
	return f, nil
}

// Parse compiles src's AST, stopping at the first syntax error
// encountered, per spec.md §4.1.
func Parse(src string) (*File, error) {
	return NewParser(src).Parse()
}

// ParseAll parses src and collects every syntax error it can recover
// from (by resyncing at the next RULE_ID) instead of stopping at the
// first, aggregating them with multierror. This is a convenience the
// base spec does not preclude (SPEC_FULL.md §4).
func ParseAll(src string) (*File, error) {
	p := NewParser(src)
	f := &File{}
	var errs *multierror.Error
	for p.tok.Kind != TokEOF {
		if p.err != nil {
			errs = multierror.Append(errs, p.err)
			break
		}
		rule, err := p.parseRule()
		if err != nil {
			errs = multierror.Append(errs, err)
			p.resync()
			continue
		}
		f.Rules = append(f.Rules, *rule)
	}
	if errs != nil {
		return nil, &SyntaxError{wrapErrorf(KindSyntax, errs, "%d syntax error(s)", errs.Len())}
	}
	return f, nil
}

// resync discards tokens up to (not including) the next RULE_ID token,
// or EOF, so ParseAll can keep collecting errors.
func (p *Parser) resync() {
	p.err = nil
	for p.tok.Kind != TokEOF && p.tok.Kind != TokRuleId {
		tok, err := p.lex.Next()
		if err != nil {
			return
		}
		p.tok = tok
	}
}

func (p *Parser) parseRule() (*RuleDef, error) {
	nameTok, err := p.expect(TokRuleId, "rule name (#name)")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokColon, "':'"); err != nil {
		return nil, err
	}

	rule := &RuleDef{Name: nameTok.Text, Pos: nameTok.Pos}

	pattern, err := p.parseName()
	if err != nil {
		return nil, err
	}
	rule.Pattern = pattern

	if p.tok.Kind == TokAmp {
		p.advance()
		sets, err := p.parseConsCNF()
		if err != nil {
			return nil, err
		}
		rule.ConsSets = sets
	}

	if p.tok.Kind == TokSignArrow {
		p.advance()
		list, err := p.parseSignList()
		if err != nil {
			return nil, err
		}
		rule.SigningList = list
	}

	return rule, p.err
}

func (p *Parser) parseName() ([]PatComp, error) {
	if p.tok.Kind == TokSlash {
		p.advance()
	}
	var comps []PatComp
	c, err := p.parseComp()
	if err != nil {
		return nil, err
	}
	comps = append(comps, c)
	for p.tok.Kind == TokSlash {
		p.advance()
		c, err := p.parseComp()
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, nil
}

func (p *Parser) parseComp() (PatComp, error) {
	pos := p.tok.Pos
	switch p.tok.Kind {
	case TokStr:
		v := p.tok.Text
		p.advance()
		return PatComp{Kind: CompLiteral, Literal: v, Pos: pos}, p.err
	case TokCName:
		v := p.tok.Text
		p.advance()
		return PatComp{Kind: CompTag, Tag: v, Pos: pos}, p.err
	case TokRuleId:
		v := p.tok.Text
		p.advance()
		return PatComp{Kind: CompRule, Rule: v, Pos: pos}, p.err
	default:
		return PatComp{}, p.fail("expected a name component (string, identifier or #rule)")
	}
}

func (p *Parser) parseSignList() ([]string, error) {
	var list []string
	t, err := p.expect(TokRuleId, "rule name after '<='")
	if err != nil {
		return nil, err
	}
	list = append(list, t.Text)
	for p.tok.Kind == TokPipe {
		p.advance()
		t, err := p.expect(TokRuleId, "rule name after '|'")
		if err != nil {
			return nil, err
		}
		list = append(list, t.Text)
	}
	return list, nil
}

func (p *Parser) parseConsCNF() ([]ConsSetAST, error) {
	var sets []ConsSetAST
	s, err := p.parseConsSet()
	if err != nil {
		return nil, err
	}
	sets = append(sets, s)
	for p.tok.Kind == TokPipe {
		p.advance()
		s, err := p.parseConsSet()
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, nil
}

func (p *Parser) parseConsSet() (ConsSetAST, error) {
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var set ConsSetAST
	t, err := p.parseConsTerm()
	if err != nil {
		return nil, err
	}
	set = append(set, t)
	for p.tok.Kind == TokComma {
		p.advance()
		t, err := p.parseConsTerm()
		if err != nil {
			return nil, err
		}
		set = append(set, t)
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return set, nil
}

func (p *Parser) parseConsTerm() (ConsTermAST, error) {
	tag, err := p.expect(TokCName, "constraint target identifier")
	if err != nil {
		return ConsTermAST{}, err
	}
	if _, err := p.expect(TokColon, "':'"); err != nil {
		return ConsTermAST{}, err
	}
	opts, err := p.parseConsDisj()
	if err != nil {
		return ConsTermAST{}, err
	}
	return ConsTermAST{Tag: tag.Text, Options: opts}, nil
}

func (p *Parser) parseConsDisj() ([]ConsOptAST, error) {
	var opts []ConsOptAST
	o, err := p.parseConsOpt()
	if err != nil {
		return nil, err
	}
	opts = append(opts, o)
	for p.tok.Kind == TokPipe {
		p.advance()
		o, err := p.parseConsOpt()
		if err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, nil
}

func (p *Parser) parseConsOpt() (ConsOptAST, error) {
	switch p.tok.Kind {
	case TokStr:
		v := p.tok.Text
		p.advance()
		return ConsOptAST{Kind: ConsOptLiteral, Literal: v}, p.err
	case TokCName:
		v := p.tok.Text
		p.advance()
		return ConsOptAST{Kind: ConsOptTag, Tag: v}, p.err
	case TokFnId:
		name := p.tok.Text
		p.advance()
		if _, err := p.expect(TokLParen, "'(' after function name"); err != nil {
			return ConsOptAST{}, err
		}
		args, err := p.parseFnArgs()
		if err != nil {
			return ConsOptAST{}, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return ConsOptAST{}, err
		}
		return ConsOptAST{Kind: ConsOptFn, FnName: name, FnArgs: args}, nil
	default:
		return ConsOptAST{}, p.fail("expected a string, identifier or $fn(...) call")
	}
}

func (p *Parser) parseFnArgs() ([]FnArgAST, error) {
	if p.tok.Kind == TokRParen {
		return nil, nil
	}
	var args []FnArgAST
	a, err := p.parseFnArg()
	if err != nil {
		return nil, err
	}
	args = append(args, a)
	for p.tok.Kind == TokComma {
		p.advance()
		a, err := p.parseFnArg()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func (p *Parser) parseFnArg() (FnArgAST, error) {
	switch p.tok.Kind {
	case TokStr:
		v := p.tok.Text
		p.advance()
		return FnArgAST{Kind: FnArgLiteral, Literal: v}, p.err
	case TokCName:
		v := p.tok.Text
		p.advance()
		return FnArgAST{Kind: FnArgTag, Tag: v}, p.err
	default:
		return FnArgAST{}, p.fail("expected a string or identifier argument")
	}
}
