package models

import "strings"

// DefaultLimit caps a lookup's candidate list.
const DefaultLimit = 10

// MinSearchLength is the shortest search text that triggers a lookup.
const MinSearchLength = 2

// Student is a registered student as returned by the record store.
type Student struct {
	ID       string `json:"id" msgpack:"id"`
	FullName string `json:"full_name" msgpack:"full_name"`
	Grade    string `json:"grade" msgpack:"grade"`
	Section  string `json:"section" msgpack:"section"`
	Shift    string `json:"shift" msgpack:"shift"`
}

// Query scopes a lookup. NamePattern is matched as a case-insensitive
// substring; Shift is always set; Grade is optional. Results are ordered by
// full name ascending.
type Query struct {
	NamePattern string
	Shift       string
	Grade       string
	Limit       int
}

// NewQuery builds a query with the default limit.
func NewQuery(namePattern, shift, grade string) Query {
	return Query{
		NamePattern: strings.TrimSpace(namePattern),
		Shift:       shift,
		Grade:       grade,
		Limit:       DefaultLimit,
	}
}

// EffectiveLimit returns Limit clamped to (0, DefaultLimit].
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > DefaultLimit {
		return DefaultLimit
	}
	return q.Limit
}

// Searchable reports whether the name pattern is long enough to look up.
func Searchable(text string) bool {
	return len([]rune(strings.TrimSpace(text))) >= MinSearchLength
}

// Matches applies q to s the way the record store does. Used by the in-memory
// directory.
func (q Query) Matches(s Student) bool {
	if q.Shift != "" && s.Shift != q.Shift {
		return false
	}
	if q.Grade != "" && s.Grade != q.Grade {
		return false
	}
	return strings.Contains(strings.ToLower(s.FullName), strings.ToLower(q.NamePattern))
}
