package parser

import (
	"github.com/ahrtr/gocontainer/set"
	"github.com/ahrtr/gocontainer/stack"
	"github.com/edwingeng/deque"

	"github.com/xirelogy/go-tiney/internal/token"
)

// context is the parser's position in a statement, derived from its
// containers. It selects how an identifier is handled.
type context int

const (
	// ctxStatement: nothing pending; an identifier starts a statement.
	ctxStatement context = iota
	// ctxDefHeader: a def keyword is waiting for its function name.
	ctxDefHeader
	// ctxPendingOperator: an operator is waiting for its right operand.
	ctxPendingOperator
)

func (c context) String() string {
	switch c {
	case ctxStatement:
		return "statement"
	case ctxDefHeader:
		return "def-header"
	default:
		return "pending-operator"
	}
}

// state holds the working containers of a single parse.
type state struct {
	operands stack.Interface // pending "+" and "="
	keywords stack.Interface // open "def"
	idents   deque.Deque     // identifiers in the order recorded
	stored   set.Interface   // StoreFast targets
	targets  []string        // stored, in first-store order
}

func newState() *state {
	return &state{
		operands: stack.New(),
		keywords: stack.New(),
		idents:   deque.NewDeque(),
		stored:   set.New(),
	}
}

func (s *state) context() context {
	switch {
	case s.operands.IsEmpty() && s.keywords.IsEmpty():
		return ctxStatement
	case !s.keywords.IsEmpty() && s.keywords.Peek() == token.Def:
		return ctxDefHeader
	default:
		return ctxPendingOperator
	}
}

func (s *state) pushOperator(op string) {
	s.operands.Push(op)
}

// topOperator returns the most recent unresolved operator, or "".
func (s *state) topOperator() string {
	if s.operands.IsEmpty() {
		return ""
	}
	op, _ := s.operands.Peek().(string)
	return op
}

func (s *state) popOperator() {
	if !s.operands.IsEmpty() {
		s.operands.Pop()
	}
}

func (s *state) openDef() {
	s.keywords.Push(token.Def)
}

func (s *state) closeDef() {
	if !s.keywords.IsEmpty() {
		s.keywords.Pop()
	}
}

func (s *state) record(name string) {
	s.idents.PushBack(name)
}

// lastIdent returns the most recently recorded identifier, or "".
func (s *state) lastIdent() string {
	if s.idents.Empty() {
		return ""
	}
	name, _ := s.idents.Back().(string)
	return name
}

// popIdent removes and returns the most recently recorded identifier, or "".
func (s *state) popIdent() string {
	if s.idents.Empty() {
		return ""
	}
	name, _ := s.idents.PopBack().(string)
	return name
}

// hasIdent scans the recorded identifiers front to back.
func (s *state) hasIdent(name string) bool {
	for i := 0; i < s.idents.Len(); i++ {
		if s.idents.Peek(i) == name {
			return true
		}
	}
	return false
}

func (s *state) markStored(name string) {
	if name == "" || s.stored.Contains(name) {
		return
	}
	s.stored.Add(name)
	s.targets = append(s.targets, name)
}

func (s *state) isStored(name string) bool {
	return name != "" && s.stored.Contains(name)
}

// knownNames lists recorded identifiers and store targets without duplicates,
// in first-seen order.
func (s *state) knownNames() []string {
	seen := map[string]bool{}
	var names []string
	add := func(v interface{}) {
		name, ok := v.(string)
		if !ok || name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for i := 0; i < s.idents.Len(); i++ {
		add(s.idents.Peek(i))
	}
	for _, name := range s.targets {
		add(name)
	}
	return names
}
