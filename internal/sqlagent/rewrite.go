package sqlagent

import "strings"

// rewriteConcat converts every CONCAT(a, b, ...) call in the statement to
// its (a || b || ...) equivalent. SQLite has no CONCAT function, so SQL
// generated for other dialects fails with an "unknown function" error; this
// is a narrow text transform for exactly that case, not a SQL parser.
// Arguments are split on top-level commas only — commas inside quoted
// literals or nested parentheses are left alone.
func rewriteConcat(sqlQuery string) string {
	var out strings.Builder
	rest := sqlQuery
	for {
		idx := indexConcat(rest)
		if idx < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:idx])

		open := idx + len("concat")
		args, end, ok := splitArgs(rest[open:])
		if !ok {
			// Unbalanced parens: emit as-is and stop rewriting.
			out.WriteString(rest[idx:])
			return out.String()
		}
		for i := range args {
			// Arguments may themselves contain CONCAT calls.
			args[i] = rewriteConcat(strings.TrimSpace(args[i]))
		}
		out.WriteString("(" + strings.Join(args, " || ") + ")")
		rest = rest[open+end:]
	}
}

// indexConcat finds the next CONCAT call (case-insensitive, outside string
// literals, immediately followed by an open paren). Returns -1 if none.
func indexConcat(s string) int {
	lower := strings.ToLower(s)
	inString := false
	for i := 0; i+len("concat") < len(lower); i++ {
		if lower[i] == '\'' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if !strings.HasPrefix(lower[i:], "concat") {
			continue
		}
		// Word boundary on the left, '(' on the right (whitespace allowed).
		if i > 0 && isWordByte(lower[i-1]) {
			continue
		}
		j := i + len("concat")
		for j < len(lower) && (lower[j] == ' ' || lower[j] == '\t') {
			j++
		}
		if j < len(lower) && lower[j] == '(' {
			return i
		}
	}
	return -1
}

// splitArgs consumes "( ... )" from the front of s (leading whitespace
// allowed) and returns the top-level comma-separated arguments plus the
// offset just past the closing paren.
func splitArgs(s string) (args []string, end int, ok bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i >= len(s) || s[i] != '(' {
		return nil, 0, false
	}
	i++

	depth := 1
	inString := false
	start := i
	for ; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, s[start:i])
				return args, i + 1, true
			}
		case ',':
			if depth == 1 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	return nil, 0, false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
