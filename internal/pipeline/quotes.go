package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jonathan/resume-topics/internal/types"
)

// QuoteError lists the quotes that do not appear verbatim in the source text
type QuoteError struct {
	Violations []QuoteViolation
}

// QuoteViolation is one quote missing from the source text
type QuoteViolation struct {
	TopicName string
	Quote     string
}

func (e *QuoteError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("quote not found in source (workstream %q): %q", v.TopicName, v.Quote)
	}
	return fmt.Sprintf("%d quotes not found in source, first (workstream %q): %q",
		len(e.Violations), e.Violations[0].TopicName, e.Violations[0].Quote)
}

// ValidateQuotes checks that every raw quote is a substring of source once whitespace runs are
// collapsed on both sides. Case and punctuation must match exactly.
func ValidateQuotes(source string, workstreams []types.Workstream) error {
	normalized := normalizeWhitespace(source)

	var violations []QuoteViolation
	for _, ws := range workstreams {
		for _, quote := range ws.RawQuotes {
			q := normalizeWhitespace(quote)
			if q == "" || !strings.Contains(normalized, q) {
				violations = append(violations, QuoteViolation{TopicName: ws.TopicName, Quote: quote})
			}
		}
	}

	if len(violations) > 0 {
		return &QuoteError{Violations: violations}
	}
	return nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
