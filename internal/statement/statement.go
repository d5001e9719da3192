// Package statement reads SQL scripts one statement at a time
package statement

import (
	"regexp"
	"strings"
)

// Kind tells whether a statement returns rows
type Kind int

const (
	// KindExec statements are run with Exec and report rows affected
	KindExec Kind = iota
	// KindQuery statements are run with Query and return rows
	KindQuery
)

func (k Kind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "exec"
}

// Statement is a single SQL statement read from a script
type Statement struct {
	Text string
	Kind Kind
	// Key is the lower-case table the statement targets, "" when unknown
	// Statements with the same Key run in script order
	Key string
	// Line is the 1-based line the statement starts on
	Line int
}

var queryKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"WITH":     true,
	"PRAGMA":   true,
	"EXPLAIN":  true,
	"DESCRIBE": true,
	"DESC":     true,
	"VALUES":   true,
	"TABLE":    true,
}

var tablePattern = regexp.MustCompile("(?i)\\b(?:from|into|update|table|join)\\s+(?:if\\s+(?:not\\s+)?exists\\s+)?([`\"\\[]?[\\w.]+[`\"\\]]?)")

// New classifies text and extracts its Key
func New(text string, line int) Statement {
	text = strings.TrimSpace(text)
	return Statement{
		Text: text,
		Kind: classify(text),
		Key:  key(text),
		Line: line,
	}
}

func classify(text string) Kind {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return KindExec
	}

	first := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	if queryKeywords[first] {
		return KindQuery
	}

	return KindExec
}

func key(text string) string {
	m := tablePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	return strings.ToLower(strings.Trim(m[1], "`\"[]"))
}
