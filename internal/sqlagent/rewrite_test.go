package sqlagent

import "testing"

func TestRewriteConcat(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "three args",
			in:   "SELECT CONCAT(first_name, ' ', last_name) FROM employees",
			want: "SELECT (first_name || ' ' || last_name) FROM employees",
		},
		{
			name: "comma inside quoted literal stays unsplit",
			in:   "SELECT CONCAT(city, ', ', country) FROM offices",
			want: "SELECT (city || ', ' || country) FROM offices",
		},
		{
			name: "nested function call",
			in:   "SELECT CONCAT(UPPER(first_name), ' ', COALESCE(nick, '')) FROM t",
			want: "SELECT (UPPER(first_name) || ' ' || COALESCE(nick, '')) FROM t",
		},
		{
			name: "nested concat",
			in:   "SELECT CONCAT(a, CONCAT(b, c)) FROM t",
			want: "SELECT (a || (b || c)) FROM t",
		},
		{
			name: "lowercase and spacing",
			in:   "select concat (a, b) from t",
			want: "select (a || b) from t",
		},
		{
			name: "multiple calls",
			in:   "SELECT CONCAT(a, b), CONCAT(c, d) FROM t",
			want: "SELECT (a || b), (c || d) FROM t",
		},
		{
			name: "no concat is untouched",
			in:   "SELECT first_name FROM employees",
			want: "SELECT first_name FROM employees",
		},
		{
			name: "identifier containing concat is untouched",
			in:   "SELECT my_concat(a, b) FROM t",
			want: "SELECT my_concat(a, b) FROM t",
		},
		{
			name: "concat inside string literal is untouched",
			in:   "SELECT 'use CONCAT(a, b) here' FROM t",
			want: "SELECT 'use CONCAT(a, b) here' FROM t",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rewriteConcat(tc.in); got != tc.want {
				t.Errorf("rewriteConcat(%q)\n got  %q\n want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCheckRawSQL(t *testing.T) {
	allowed := []string{
		"SELECT first_name FROM employees LIMIT 5",
		"select * from departments",
		"  SELECT updated_at, inserted_by FROM audit_log", // denied words as substrings only
	}
	for _, q := range allowed {
		if err := CheckRawSQL(q); err != nil {
			t.Errorf("CheckRawSQL(%q) = %v, want nil", q, err)
		}
	}

	denied := []string{
		"DROP TABLE employees",
		"SELECT * FROM employees; DELETE FROM employees",
		"select * from t; drop table t",
		"UPDATE employees SET salary = 0",
		"SELECT * FROM employees WHERE id IN (SELECT id FROM x); TRUNCATE employees",
		"",
		"   ",
		"EXPLAIN SELECT 1", // not syntactically a SELECT
	}
	for _, q := range denied {
		if err := CheckRawSQL(q); err == nil {
			t.Errorf("CheckRawSQL(%q) = nil, want error", q)
		}
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"  ```sql\nSELECT a\nFROM t\n```  ", "SELECT a\nFROM t"},
	}
	for _, tc := range cases {
		got := stripFences(tc.in)
		if got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) >= 3 && got[:3] == "```" {
			t.Errorf("stripFences(%q) still starts with a fence", tc.in)
		}
	}
}
