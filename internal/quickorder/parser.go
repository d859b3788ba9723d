// Package quickorder turns a waiter's free-text ticket into menu line items.
//
// One line per item: an optional quantity ("2", "2x", "x2") at the start or
// end, the item name, and optional kitchen notes after "--":
//
//	2x coxinha
//	picanha na chapa -- mal passada
//	caipirinha x3
package quickorder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxLineQuantity caps the quantity a single ticket line may carry.
const MaxLineQuantity = 99

const notesSeparator = "--"

// ErrEmptyTicket is returned when a ticket has no usable lines.
var ErrEmptyTicket = errors.New("ticket has no item lines")

// Line is one parsed ticket line.
type Line struct {
	Raw         string
	Description string
	Quantity    int32
	Notes       string
}

// Ticket is the result of parsing a free-text ticket.
type Ticket struct {
	Lines    []Line
	Warnings []string // lines that failed to parse
}

// Parse splits text into item lines. Lines that cannot be parsed are reported
// as warnings instead of failing the whole ticket.
func Parse(text string) (*Ticket, error) {
	var t Ticket
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		line, err := parseLine(raw)
		if err != nil {
			t.Warnings = append(t.Warnings, fmt.Sprintf("skipped %q: %v", raw, err))
			continue
		}
		t.Lines = append(t.Lines, line)
	}
	if len(t.Lines) == 0 {
		return nil, ErrEmptyTicket
	}
	return &t, nil
}

func parseLine(raw string) (Line, error) {
	body, notes, _ := strings.Cut(raw, notesSeparator)
	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return Line{}, errors.New("missing item name")
	}

	qty := int32(1)
	qtyFound := false
	if q, ok := parseQuantity(tokens[0]); ok {
		qty, qtyFound = q, true
		tokens = tokens[1:]
	} else if q, ok := parseQuantity(tokens[len(tokens)-1]); ok && len(tokens) > 1 {
		qty, qtyFound = q, true
		tokens = tokens[:len(tokens)-1]
	}
	if qtyFound && (qty <= 0 || qty > MaxLineQuantity) {
		return Line{}, fmt.Errorf("quantity must be between 1 and %d", MaxLineQuantity)
	}
	if len(tokens) == 0 {
		return Line{}, errors.New("missing item name")
	}

	return Line{
		Raw:         raw,
		Description: strings.Join(tokens, " "),
		Quantity:    qty,
		Notes:       strings.TrimSpace(notes),
	}, nil
}

// parseQuantity accepts "2", "2x", "x2" and "2un".
func parseQuantity(tok string) (int32, bool) {
	tok = strings.ToLower(tok)
	switch {
	case strings.HasPrefix(tok, "x"):
		tok = tok[1:]
	case strings.HasSuffix(tok, "x"):
		tok = tok[:len(tok)-1]
	case strings.HasSuffix(tok, "un"):
		tok = tok[:len(tok)-2]
	}
	if tok == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}
