package parser

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/xirelogy/go-tiney/internal/token"
)

// ErrInvalidOperand is returned (wrapped) when an addition operand cannot be
// confirmed as a known identifier.
var ErrInvalidOperand = errors.New("invalid operand")

// InvalidOperandError describes a rejected binary addition.
type InvalidOperandError struct {
	Left       string // identifier popped from the queue
	Right      string // identifier being consumed
	Mode       ValidationMode
	Pos        token.Position
	Suggestion string
}

func (e *InvalidOperandError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message())
	}
	return e.Message()
}

// Message is the error text without the source position.
func (e *InvalidOperandError) Message() string {
	var msg string
	switch e.Mode {
	case ValidateDeclared:
		msg = fmt.Sprintf("%v: %q + %q uses a variable that was never assigned", ErrInvalidOperand, e.Left, e.Right)
	default:
		msg = fmt.Sprintf("%v: neither %q nor %q is a known identifier", ErrInvalidOperand, e.Left, e.Right)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap exposes ErrInvalidOperand for errors.Is.
func (e *InvalidOperandError) Unwrap() error {
	return ErrInvalidOperand
}

// closestMatch picks the candidate nearest to target, or "" when nothing is
// plausibly close.
func closestMatch(target string, candidates []string) string {
	var others []string
	for _, c := range candidates {
		if c != target {
			others = append(others, c)
		}
	}
	if target == "" || len(others) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, others)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, c := range others {
		if d := fuzzy.LevenshteinDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
