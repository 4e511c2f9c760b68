// Package search parses the letter filter syntax used by the CLI and the
// terminal reader, e.g. `from:alice after:2024-01-01 older_than:2w`.
package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itsluminous/Letters/internal/query"
)

// Query is a parsed filter. Names are contact display names or user ids,
// resolved by the caller before the filter reaches a feed.
type Query struct {
	Names      []string   // from:, to:, with: correspondents
	BeforeDate *time.Time // before:, older_than:
	AfterDate  *time.Time // after:, newer_than:
}

// IsEmpty returns true if the query has no criteria.
func (q *Query) IsEmpty() bool {
	return len(q.Names) == 0 && q.BeforeDate == nil && q.AfterDate == nil
}

// FilterSpec builds the feed filter for q with its names resolved to ids.
func (q *Query) FilterSpec(contactIDs []string) query.FilterSpec {
	f := query.FilterSpec{ContactIDs: append([]string(nil), contactIDs...)}
	if q.BeforeDate != nil {
		b := *q.BeforeDate
		f.Before = &b
	}
	if q.AfterDate != nil {
		a := *q.AfterDate
		f.After = &a
	}
	return f
}

// String renders q back into filter syntax.
func (q *Query) String() string {
	var parts []string
	for _, n := range q.Names {
		if strings.ContainsAny(n, " \t") {
			n = `"` + n + `"`
		}
		parts = append(parts, "from:"+n)
	}
	if q.AfterDate != nil {
		parts = append(parts, "after:"+q.AfterDate.Format("2006-01-02"))
	}
	if q.BeforeDate != nil {
		parts = append(parts, "before:"+q.BeforeDate.Format("2006-01-02"))
	}
	return strings.Join(parts, " ")
}

// operatorFn applies a parsed operator:value pair to the query.
type operatorFn func(q *Query, value string, now time.Time) error

func addName(q *Query, v string, _ time.Time) error {
	if v == "" {
		return fmt.Errorf("missing name")
	}
	q.Names = append(q.Names, v)
	return nil
}

// operators maps operator names to their handler functions.
var operators = map[string]operatorFn{
	"from": addName,
	"to":   addName,
	"with": addName,
	"before": func(q *Query, v string, _ time.Time) error {
		t := parseDate(v)
		if t == nil {
			return fmt.Errorf("invalid date %q (use YYYY-MM-DD)", v)
		}
		q.BeforeDate = t
		return nil
	},
	"after": func(q *Query, v string, _ time.Time) error {
		t := parseDate(v)
		if t == nil {
			return fmt.Errorf("invalid date %q (use YYYY-MM-DD)", v)
		}
		q.AfterDate = t
		return nil
	},
	"older_than": func(q *Query, v string, now time.Time) error {
		t := parseRelativeDate(v, now)
		if t == nil {
			return fmt.Errorf("invalid age %q (use e.g. 7d, 2w, 1m, 1y)", v)
		}
		q.BeforeDate = t
		return nil
	},
	"newer_than": func(q *Query, v string, now time.Time) error {
		t := parseRelativeDate(v, now)
		if t == nil {
			return fmt.Errorf("invalid age %q (use e.g. 7d, 2w, 1m, 1y)", v)
		}
		q.AfterDate = t
		return nil
	},
}

// Parser holds configuration for query parsing.
type Parser struct {
	Now func() time.Time // Time source (mockable for testing)
}

// NewParser creates a Parser with default settings.
func NewParser() *Parser {
	return &Parser{Now: func() time.Time { return time.Now().UTC() }}
}

// Parse parses a filter string.
//
// Supported operators:
//   - from:, to:, with: - correspondent by contact name or user id
//   - before:, after: - date bounds (YYYY-MM-DD), both exclusive
//   - older_than:, newer_than: - relative bounds (e.g., 7d, 2w, 1m, 1y)
//
// A bare word is taken as a correspondent name. Quoting keeps names with
// spaces together: from:"Aunt May".
func (p *Parser) Parse(queryStr string) (*Query, error) {
	q := &Query{}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}

	for _, token := range tokenize(queryStr) {
		if isQuotedPhrase(token) {
			q.Names = append(q.Names, unquote(token))
			continue
		}

		if idx := strings.Index(token, ":"); idx != -1 {
			op := strings.ToLower(token[:idx])
			value := unquote(token[idx+1:])

			handler, ok := operators[op]
			if !ok {
				return nil, fmt.Errorf("unknown filter %q", op+":")
			}
			if err := handler(q, value, now); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			continue
		}

		q.Names = append(q.Names, token)
	}

	if q.BeforeDate != nil && q.AfterDate != nil && !q.AfterDate.Before(*q.BeforeDate) {
		return nil, fmt.Errorf("after: must be earlier than before:")
	}
	return q, nil
}

// Parse is a convenience function that parses using default settings.
func Parse(queryStr string) (*Query, error) {
	return NewParser().Parse(queryStr)
}

// unquote removes surrounding double quotes from a string if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// isQuotedPhrase returns true if the token is a double-quoted phrase.
func isQuotedPhrase(token string) bool {
	return len(token) > 2 && token[0] == '"' && token[len(token)-1] == '"'
}

// tokenize splits a query string, preserving quoted phrases and operator:value pairs.
// Handles cases like from:"Aunt May" where the operator and quoted value should stay together.
func tokenize(queryStr string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)
	afterColon := false
	// Set when the quoted section started right after a colon.
	opQuoted := false

	for _, char := range queryStr {
		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = char
			opQuoted = afterColon
			if !afterColon && current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			if afterColon {
				current.WriteRune('"')
			}
			afterColon = false
		case char == quoteChar && inQuotes:
			inQuotes = false
			if opQuoted {
				current.WriteRune('"')
				tokens = append(tokens, current.String())
				current.Reset()
			} else if current.Len() > 0 {
				tokens = append(tokens, "\""+current.String()+"\"")
				current.Reset()
			}
			quoteChar = 0
			opQuoted = false
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			afterColon = false
		default:
			current.WriteRune(char)
			afterColon = (char == ':')
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// parseDate parses date strings like YYYY-MM-DD or YYYY/MM/DD as UTC midnight.
func parseDate(value string) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006/01/02",
	}

	value = strings.TrimSpace(value)
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

var relativeDatePattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

// parseRelativeDate parses relative dates like 7d, 2w, 1m, 1y relative to now.
func parseRelativeDate(value string, now time.Time) *time.Time {
	value = strings.TrimSpace(strings.ToLower(value))
	match := relativeDatePattern.FindStringSubmatch(value)
	if match == nil {
		return nil
	}

	amount, _ := strconv.Atoi(match[1])

	var result time.Time
	switch match[2] {
	case "d":
		result = now.AddDate(0, 0, -amount)
	case "w":
		result = now.AddDate(0, 0, -amount*7)
	case "m":
		result = now.AddDate(0, -amount, 0)
	case "y":
		result = now.AddDate(-amount, 0, 0)
	default:
		return nil
	}

	return &result
}
