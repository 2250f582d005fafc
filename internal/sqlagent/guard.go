package sqlagent

import (
	"fmt"
	"strings"
)

// deniedKeywords are rejected anywhere in caller-supplied raw SQL. This is
// a string-level denylist, not semantic parsing; it narrows upstream access
// control rather than replacing it.
var deniedKeywords = []string{"DROP", "DELETE", "TRUNCATE", "ALTER", "UPDATE", "INSERT"}

// CheckRawSQL validates caller-supplied SQL: the statement must start with
// SELECT and must not contain any denylisted keyword (word-boundary,
// case-insensitive). Returns nil when the statement is allowed.
func CheckRawSQL(sqlQuery string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return fmt.Errorf("empty SQL statement")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	for _, kw := range deniedKeywords {
		if containsWord(upper, kw) {
			return fmt.Errorf("statement contains forbidden keyword %s", kw)
		}
	}
	return nil
}

// containsWord reports whether word occurs in s at word boundaries. Both
// inputs must already be upper-cased.
func containsWord(s, word string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		i += from
		before := i == 0 || !isUpperWordByte(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(s) || !isUpperWordByte(s[afterIdx])
		if before && after {
			return true
		}
		from = i + 1
	}
}

func isUpperWordByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
