// Package ignore matches document paths against .docragignore files, which
// use gitignore syntax: wildcards (*, ?, **), rooted patterns (/drafts),
// directory patterns (scans/), and negation (!keep.pdf). Later rules win.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the ignore file looked up in each ingested directory.
const FileName = ".docragignore"

// Matcher holds compiled rules. It is immutable after construction, so
// matching is safe for concurrent use.
type Matcher struct {
	rules []rule
}

type rule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// New compiles patterns. Blank lines and # comments are skipped.
func New(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		if r, ok := compile(p); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// Load reads dir/.docragignore. A missing file yields an empty matcher.
func Load(dir string) (*Matcher, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", FileName, err)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		patterns = append(patterns, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return New(patterns...), nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int { return len(m.rules) }

// Match reports whether rel, a slash- or OS-separated path relative to the
// ignore file's directory, is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	ignored := false
	for _, r := range m.rules {
		if r.matches(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func compile(line string) (rule, bool) {
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false
	}

	var r rule
	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = strings.TrimPrefix(p, "/")
	} else if strings.Contains(p, "/") && !strings.HasPrefix(p, "**/") {
		// "a/b" is relative to the ignore file, like "/a/b".
		r.anchored = true
	}
	if p == "" {
		return rule{}, false
	}
	re, err := regexp.Compile("^" + toRegexp(p) + "$")
	if err != nil {
		// Malformed character classes match nothing, as in git.
		return rule{}, false
	}
	r.re = re
	return r, true
}

func (r rule) matches(path string, isDir bool) bool {
	parts := strings.Split(path, "/")

	if r.anchored {
		// The path itself, or any ancestor directory of it.
		for i := len(parts); i >= 1; i-- {
			prefix := strings.Join(parts[:i], "/")
			if !r.re.MatchString(prefix) {
				continue
			}
			if i == len(parts) && r.dirOnly {
				return isDir
			}
			return true
		}
		return false
	}

	for i, part := range parts {
		if !r.re.MatchString(part) {
			continue
		}
		if i == len(parts)-1 && r.dirOnly {
			return isDir
		}
		// A matching ancestor hides everything below it.
		return true
	}
	return r.re.MatchString(path)
}

// toRegexp translates a glob to a regular expression body.
func toRegexp(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				if i+2 < len(glob) && glob[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(glob[i : i+end+2])
			i += end + 1
		case '\\':
			if i+1 < len(glob) {
				i++
				b.WriteString(regexp.QuoteMeta(string(glob[i])))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
