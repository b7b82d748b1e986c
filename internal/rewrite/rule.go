package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// ProxyToken is the invocation token of the rtk proxy. Every rewritten
// command starts with it.
const ProxyToken = "rtk"

// Captures holds what a Matcher recognized in a command.
type Captures struct {
	Groups []string // Groups[0] is the whole match, Groups[n] the n-th sub-group
	Rest   string   // text after the match, left untouched by a rewrite
}

// Group returns the n-th captured group, or "" when the group did not
// participate in the match.
func (c Captures) Group(n int) string {
	if n < 0 || n >= len(c.Groups) {
		return ""
	}
	return c.Groups[n]
}

// Matcher tests a command and captures the recognized prefix.
// Implementations must only match at the start of the command.
type Matcher interface {
	Match(command string) (Captures, bool)
	String() string
}

// Template builds the replacement for the matched prefix.
type Template func(c Captures) string

// Then returns a Template producing prefix followed by the given groups,
// in order. Groups are typically the separator following the recognized
// token, which keeps argument tails intact.
func Then(prefix string, groups ...int) Template {
	return func(c Captures) string {
		if len(groups) == 0 {
			return prefix
		}
		var b strings.Builder
		b.WriteString(prefix)
		for _, g := range groups {
			b.WriteString(c.Group(g))
		}
		return b.String()
	}
}

// Space is a character class for one whitespace character as JavaScript's
// \s defines it: RE2's \s plus \v, Unicode space separators (NBSP among
// them), U+2028, U+2029 and U+FEFF. Agents emit such separators when
// commands are pasted or generated.
const Space = `[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]`

// WidenSpace replaces every \s in pattern with Space. It must not be used on
// patterns with \s inside a bracket expression.
func WidenSpace(pattern string) string {
	return strings.ReplaceAll(pattern, `\s`, Space)
}

type regexpMatcher struct {
	re *regexp.Regexp
}

// Regexp compiles a start-anchored regular expression matcher. Patterns
// that do not begin with "^" are rejected.
func Regexp(pattern string) (Matcher, error) {
	if !strings.HasPrefix(pattern, "^") {
		return nil, fmt.Errorf("pattern %q is not anchored at the start", pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}
	return regexpMatcher{re: re}, nil
}

// MustRegexp is like Regexp but panics on error. Used for the built-in table.
func MustRegexp(pattern string) Matcher {
	m, err := Regexp(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m regexpMatcher) Match(command string) (Captures, bool) {
	loc := m.re.FindStringSubmatchIndex(command)
	// The leftmost match must start at 0; an alternation such as "^a|b"
	// could otherwise match mid-string.
	if loc == nil || loc[0] != 0 {
		return Captures{}, false
	}
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = command[loc[2*i]:loc[2*i+1]]
		}
	}
	return Captures{Groups: groups, Rest: command[loc[1]:]}, true
}

func (m regexpMatcher) String() string { return m.re.String() }

// NumGroups reports the number of sub-groups of a matcher built by Regexp,
// or -1 for other implementations.
func NumGroups(m Matcher) int {
	if rm, ok := m.(regexpMatcher); ok {
		return rm.re.NumSubexp()
	}
	return -1
}

// Rule pairs a Matcher with the Template used to rewrite what it matched.
type Rule struct {
	Name     string
	Family   string
	Matcher  Matcher
	Template Template
}

// Apply rewrites command when the rule matches it.
func (r Rule) Apply(command string) (string, bool) {
	c, ok := r.Matcher.Match(command)
	if !ok {
		return "", false
	}
	return r.Template(c) + c.Rest, true
}

// Table is an ordered, read-only list of rules. Earlier rules take
// priority over later ones.
type Table struct {
	rules []Rule
}

// NewTable copies rules into a new Table.
func NewTable(rules ...Rule) Table {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return Table{rules: cp}
}

// Len returns the number of rules.
func (t Table) Len() int { return len(t.rules) }

// Rules returns a copy of the rules in priority order.
func (t Table) Rules() []Rule {
	cp := make([]Rule, len(t.rules))
	copy(cp, t.rules)
	return cp
}

// Lookup finds a rule by name.
func (t Table) Lookup(name string) (Rule, bool) {
	for _, r := range t.rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Families returns the distinct rule families in first-seen order.
func (t Table) Families() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.rules {
		if r.Family == "" || seen[r.Family] {
			continue
		}
		seen[r.Family] = true
		out = append(out, r.Family)
	}
	return out
}
