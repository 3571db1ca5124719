package lexer

import (
	"testing"

	"github.com/xirelogy/go-tiney/internal/token"
)

func TestLexerFunctionBody(t *testing.T) {
	input := "def s():\n\tab = 1\n\tb = 12\n\tprint(ab + b)\n"

	tests := []token.Token{
		{Kind: token.Keyword, Text: "def"},
		{Kind: token.Identifier, Text: "s"},
		{Kind: token.Newline, Text: "\n"},
		{Kind: token.Tab, Text: "\t"},
		{Kind: token.Identifier, Text: "ab"},
		{Kind: token.Operator, Text: "="},
		{Kind: token.Literal, Text: "1"},
		{Kind: token.Newline, Text: "\n"},
		{Kind: token.Tab, Text: "\t"},
		{Kind: token.Identifier, Text: "b"},
		{Kind: token.Operator, Text: "="},
		{Kind: token.Literal, Text: "12"},
		{Kind: token.Newline, Text: "\n"},
		{Kind: token.Tab, Text: "\t"},
		{Kind: token.Keyword, Text: "print"},
		{Kind: token.Identifier, Text: "ab"},
		{Kind: token.Operator, Text: "+"},
		{Kind: token.Identifier, Text: "b"},
		{Kind: token.Newline, Text: "\n"},
	}

	toks := Tokenize(input)
	if len(toks) != len(tests) {
		t.Fatalf("expected %d tokens, got %d: %v", len(tests), len(toks), toks)
	}
	for i, expected := range tests {
		tok := toks[i]
		if tok.Kind != expected.Kind || tok.Text != expected.Text {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, expected.Kind, expected.Text, tok.Kind, tok.Text)
		}
	}
}

func TestLexerTrailingRunDropped(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"ab", 0},
		{"", 0},
		{"ab = 1", 2},
		{"print(ab + b)", 4},
		{"x = 1\n", 4},
	}
	for _, tt := range tests {
		toks := Tokenize(tt.input)
		if len(toks) != tt.want {
			t.Fatalf("%q: expected %d tokens, got %d: %v", tt.input, tt.want, len(toks), toks)
		}
	}
}

func TestLexerTrailingFlush(t *testing.T) {
	toks := Tokenize("ab = 1", WithTrailingFlush())
	expected := []token.Kind{token.Identifier, token.Operator, token.Literal}
	if len(toks) != len(expected) {
		t.Fatalf("expected %d tokens, got %v", len(expected), toks)
	}
	for i, kind := range expected {
		if toks[i].Kind != kind {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, kind, toks[i].Kind, toks[i].Text)
		}
	}

	toks = Tokenize("print", WithTrailingFlush())
	if len(toks) != 1 || toks[0].Kind != token.Keyword {
		t.Fatalf("expected flushed keyword, got %v", toks)
	}
}

func TestLexerTypeTransitionLeavesUnknown(t *testing.T) {
	toks := Tokenize("ab+1 x=2\n")

	expected := []token.Token{
		{Kind: token.Identifier, Text: "ab"},
		{Kind: token.Unknown, Text: "+1"},
		{Kind: token.Identifier, Text: "x"},
		{Kind: token.Unknown, Text: "=2"},
		{Kind: token.Newline, Text: "\n"},
	}
	if len(toks) != len(expected) {
		t.Fatalf("expected %d tokens, got %v", len(expected), toks)
	}
	for i, want := range expected {
		if toks[i].Kind != want.Kind || toks[i].Text != want.Text {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, want.Kind, want.Text, toks[i].Kind, toks[i].Text)
		}
	}
}

func TestLexerKeywordPromotion(t *testing.T) {
	tests := []struct {
		input string
		kinds []token.Kind
		texts []string
	}{
		// separator close promotes
		{"def ", []token.Kind{token.Keyword}, []string{"def"}},
		{"print(", []token.Kind{token.Keyword}, []string{"print"}},
		{"def\t", []token.Kind{token.Keyword, token.Tab}, []string{"def", "\t"}},
		// type-transition close does not
		{"def+ ", []token.Kind{token.Identifier, token.Unknown}, []string{"def", "+"}},
		// only exact spellings
		{"define ", []token.Kind{token.Identifier}, []string{"define"}},
		{"Print ", []token.Kind{token.Identifier}, []string{"Print"}},
		// a restarted run spelling a keyword is promoted at its separator close
		{"1def ", []token.Kind{token.Literal, token.Keyword}, []string{"1", "def"}},
	}
	for _, tt := range tests {
		toks := Tokenize(tt.input)
		if len(toks) != len(tt.kinds) {
			t.Fatalf("%q: expected %d tokens, got %v", tt.input, len(tt.kinds), toks)
		}
		for i := range tt.kinds {
			if toks[i].Kind != tt.kinds[i] || toks[i].Text != tt.texts[i] {
				t.Fatalf("%q token %d: expected %v %q, got %v %q", tt.input, i, tt.kinds[i], tt.texts[i], toks[i].Kind, toks[i].Text)
			}
		}
	}
}

func TestLexerIgnoredCharacters(t *testing.T) {
	// no open run: dropped
	toks := Tokenize(`"" ab `)
	if len(toks) != 1 || toks[0].Text != "ab" || toks[0].Kind != token.Identifier {
		t.Fatalf("expected lone identifier, got %v", toks)
	}

	// open run: closes it and seeds the restarted run
	toks = Tokenize(`ab"c `)
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %v", toks)
	}
	if toks[0].Kind != token.Identifier || toks[0].Text != "ab" {
		t.Fatalf("unexpected first token %v", toks[0])
	}
	if toks[1].Kind != token.Unknown || toks[1].Text != `"c` {
		t.Fatalf("unexpected second token %v", toks[1])
	}
}

func TestLexerSeparatorsEmitNothing(t *testing.T) {
	toks := Tokenize(" : ( ) ")
	if len(toks) != 0 {
		t.Fatalf("expected no tokens, got %v", toks)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("a = 1\nbb = 2\n")
	if toks[0].Pos.Line != 1 || toks[0].Pos.Column != 1 {
		t.Fatalf("unexpected position for a: %+v", toks[0].Pos)
	}
	// a, =, 1, \n, bb
	bb := toks[4]
	if bb.Text != "bb" || bb.Pos.Line != 2 || bb.Pos.Column != 1 || bb.Pos.Offset != 6 {
		t.Fatalf("unexpected position for bb: %+v", bb)
	}
}

func TestLexerIndependentRuns(t *testing.T) {
	src := "def s():\n\ta = 1\n"
	first := Tokenize(src)
	second := Tokenize(src)
	if len(first) != len(second) {
		t.Fatalf("token counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("token %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}
