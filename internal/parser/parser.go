package parser

import (
	"time"
)

// Candidate is the structured result of parsing one expense statement.
// A zero AmountMinor means no amount was detected; callers must reject
// such candidates instead of saving them.
type Candidate struct {
	AmountMinor int64
	Description string
	Category    string
	EventTS     time.Time
}

// Parser composes amount extraction, description normalization and
// classification. It is pure: no I/O, deterministic given the input text
// and the injected clock.
type Parser struct {
	now func() time.Time
}

func New() *Parser {
	return &Parser{now: time.Now}
}

// NewWithClock returns a Parser stamping candidates with the given clock.
func NewWithClock(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse always returns a candidate, even when no amount was found.
// Amount and description are both taken from the raw text independently;
// the category is derived from the normalized description.
func (p *Parser) Parse(text string) Candidate {
	desc := ExtractDescription(text)
	return Candidate{
		AmountMinor: ExtractAmount(text),
		Description: desc,
		Category:    ClassifyCategory(desc),
		EventTS:     p.now().UTC(),
	}
}
