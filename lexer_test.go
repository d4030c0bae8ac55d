package lvs

import "testing"

func TestLexerBasicTokens(t *testing.T) {
	l := NewLexer(`#admin: #platform/_role/adminID/#KEY & {_role: "admin"} <= #root`)
	var kinds []TokKind
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if tok.Kind == TokEOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	want := []TokKind{
		TokRuleId, TokColon, TokRuleId, TokSlash, TokCName, TokSlash, TokCName,
		TokSlash, TokRuleId, TokAmp, TokLBrace, TokCName, TokColon, TokStr,
		TokRBrace, TokSignArrow, TokRuleId,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexerSkipsLineComments(t *testing.T) {
	l := NewLexer("#a: \"x\" // trailing comment\n#b: \"y\"")
	var texts []string
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if tok.Kind == TokEOF {
			break
		}
		if tok.Kind == TokRuleId || tok.Kind == TokStr {
			texts = append(texts, tok.Text)
		}
	}
	want := []string{"a", "x", "b", "y"}
	if len(texts) != len(want) {
		t.Fatalf("got %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("texts[%d] = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := NewLexer(`#a: "unterminated`)
	if _, err := l.Next(); err != nil {
		t.Fatalf("Next() on '#a:': %v", err)
	}
	if _, err := l.Next(); err != nil {
		t.Fatalf("Next() on ':': %v", err)
	}
	if _, err := l.Next(); err == nil {
		t.Fatalf("expected a SyntaxError for an unterminated string")
	}
}

func TestLexerBadSignArrow(t *testing.T) {
	l := NewLexer(`#a: "x" < #b`)
	for i := 0; i < 3; i++ {
		if _, err := l.Next(); err != nil {
			t.Fatalf("Next() #%d: %v", i, err)
		}
	}
	if _, err := l.Next(); err == nil {
		t.Fatalf("expected a SyntaxError for a bare '<'")
	}
}
