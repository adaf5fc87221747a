// Package session manages LLM conversation history: a semantic manager that
// retrieves context by embedding similarity, and a plain list-backed one.
package session

import (
	"strings"

	"github.com/kailas-cloud/vecdex/filter"
)

// Tag field names shared by session records.
const (
	FieldSessionID = "session_id"
	FieldUserID    = "user_id"
	FieldAppID     = "application_id"
)

// Level selects how much of a scope is applied when filtering history.
type Level int

// Scope levels, broadest first.
const (
	// LevelApplication matches every exchange of the application.
	LevelApplication Level = iota
	// LevelUser narrows to one user within the application.
	LevelUser
	// LevelSession narrows to one session of one user.
	LevelSession
)

// Scope identifies whose history a manager reads and writes. The zero value
// scopes to nothing in particular and matches everything.
type Scope struct {
	AppID     string
	UserID    string
	SessionID string
	Level     Level
}

// Filter renders the scope as ANDed tag equalities down to the scope level.
// Empty identifiers contribute nothing.
func (s Scope) Filter() filter.Expression {
	expr := filter.MatchAll()
	if s.AppID != "" {
		expr = expr.And(filter.Tag(FieldAppID).Eq(s.AppID))
	}
	if s.Level >= LevelUser && s.UserID != "" {
		expr = expr.And(filter.Tag(FieldUserID).Eq(s.UserID))
	}
	if s.Level >= LevelSession && s.SessionID != "" {
		expr = expr.And(filter.Tag(FieldSessionID).Eq(s.SessionID))
	}
	return expr
}

// counterKey is the INCR key tracking how many exchanges the scope has seen.
func (s Scope) counterKey(name string) string {
	parts := make([]string, 0, 5)
	parts = append(parts, name)
	for _, p := range []string{s.AppID, s.UserID, s.SessionID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "count")
	return strings.Join(parts, ":")
}
