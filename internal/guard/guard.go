// File path: internal/guard/guard.go
package guard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for the read-only safety checks. Callers match with
// errors.Is; the API layer maps them to stable error codes.
var (
	ErrReadOnlyViolation = errors.New("read-only mode: write operations are not allowed")
	ErrWriteRejected     = errors.New("write operation rejected (read-only mode)")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

var (
	writeIntentPattern = regexp.MustCompile(`(?i)(delete|update|insert|drop|alter|truncate|create\s+table)`)
	writeSQLPattern    = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE)\b`)
	writeCypherPattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|SET|REMOVE|DROP)\b`)
	limitPattern       = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	identifierPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Guard bundles the read-only predicates. The built-in write-verb list is a
// minimum; deployments may extend the question check with extra verbs.
type Guard struct {
	extraQuestionPatterns []*regexp.Regexp
}

// New compiles a guard. Each extra verb is matched case-insensitively as a
// whole word in question text; a verb that fails to compile is an error so a
// bad config cannot silently weaken the filter.
func New(extraWriteVerbs []string) (*Guard, error) {
	g := &Guard{}
	for _, verb := range extraWriteVerbs {
		verb = strings.TrimSpace(verb)
		if verb == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + regexp.QuoteMeta(verb) + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compile write verb %q: %w", verb, err)
		}
		g.extraQuestionPatterns = append(g.extraQuestionPatterns, re)
	}
	return g, nil
}

// CheckQuestion rejects natural-language questions that carry write intent.
// This runs before any template or generative step, as a defense against
// prompt injection steering toward destructive queries.
func (g *Guard) CheckQuestion(question string) error {
	if writeIntentPattern.MatchString(question) {
		return fmt.Errorf("%w: question contains a write verb", ErrReadOnlyViolation)
	}
	if g != nil {
		for _, re := range g.extraQuestionPatterns {
			if re.MatchString(question) {
				return fmt.Errorf("%w: question contains a write verb", ErrReadOnlyViolation)
			}
		}
	}
	return nil
}

// CheckSQL rejects SQL containing a write keyword as a whole word. Applied to
// every SQL string immediately before execution, regardless of origin.
func CheckSQL(sql string) error {
	if match := writeSQLPattern.FindString(sql); match != "" {
		return fmt.Errorf("%w: sql contains %s", ErrWriteRejected, strings.ToUpper(match))
	}
	return nil
}

// CheckCypher rejects graph queries containing a write keyword as a whole
// word. Applied immediately before execution, corrected queries included.
func CheckCypher(query string) error {
	if match := writeCypherPattern.FindString(query); match != "" {
		return fmt.Errorf("%w: cypher contains %s", ErrWriteRejected, strings.ToUpper(match))
	}
	return nil
}

// EnforceRowCap appends a LIMIT clause unless the statement already carries
// one. Idempotent.
func EnforceRowCap(sql string, maxRows int) string {
	if maxRows <= 0 || limitPattern.MatchString(sql) {
		return sql
	}
	return fmt.Sprintf("%s\nLIMIT %d", sql, maxRows)
}

// ValidateIdentifier checks a backend target name that would otherwise be
// concatenated into query text.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// SanitizeArgument strips everything outside [A-Za-z0-9_-] from a value that
// is substituted into a graph template.
func SanitizeArgument(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
