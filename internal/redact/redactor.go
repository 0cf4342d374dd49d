// Package redact masks personally identifiable patterns before text is
// persisted, embedded, or recorded. Ingestion runs it ahead of chunking so no
// derived artifact can leak PII.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Redactor struct {
	patterns []pattern
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

// New compiles a pattern table (name -> regex). The table is configuration
// data; see config.DefaultPIIPatterns for the stock entries.
func New(table map[string]string) (*Redactor, error) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	patterns := make([]pattern, 0, len(names))
	for _, name := range names {
		re, err := regexp.Compile(table[name])
		if err != nil {
			return nil, fmt.Errorf("compile pii pattern %q: %w", name, err)
		}
		patterns = append(patterns, pattern{name: name, re: re})
	}
	return &Redactor{patterns: patterns}, nil
}

// Redact masks every match and reports whether anything was found.
func (r *Redactor) Redact(text string) (string, bool) {
	found := false
	for _, p := range r.patterns {
		if !p.re.MatchString(text) {
			continue
		}
		found = true
		mask := "[" + strings.ToUpper(p.name) + "_REDACTED]"
		text = p.re.ReplaceAllString(text, mask)
	}
	return text, found
}

// Detect reports whether any pattern matches without rewriting the text.
func (r *Redactor) Detect(text string) bool {
	for _, p := range r.patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}
