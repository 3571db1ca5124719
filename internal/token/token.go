package token

// Kind identifies the category of a token.
type Kind string

// Token carries the lexical item along with its source position.
type Token struct {
	Kind Kind
	Text string
	Pos  Position
}

// Position describes a byte offset and 1-based line/column.
type Position struct {
	Offset int
	Line   int
	Column int
}

const (
	Unknown    Kind = "UNKNOWN"
	Keyword    Kind = "KEYWORD"
	Identifier Kind = "IDENTIFIER"
	Literal    Kind = "LITERAL"
	Operator   Kind = "OPERATOR"
	Newline    Kind = "NEWLINE"
	Tab        Kind = "TAB"
)

// Keyword spellings.
const (
	Def   = "def"
	Print = "print"
)

var keywords = map[string]Kind{
	Def:   Keyword,
	Print: Keyword,
}

// LookupKeyword reports whether text is a reserved word.
func LookupKeyword(text string) (Kind, bool) {
	kind, ok := keywords[text]
	return kind, ok
}

// String renders the kind the way listings show it (e.g. "Identifier").
func (k Kind) String() string {
	switch k {
	case Keyword:
		return "Keyword"
	case Identifier:
		return "Identifier"
	case Literal:
		return "Literal"
	case Operator:
		return "Operator"
	case Newline:
		return "Newline"
	case Tab:
		return "Tab"
	default:
		return "Unknown"
	}
}
