package rewrite

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// RuleFile is a user-supplied rule table loaded from YAML.
type RuleFile struct {
	Version int        `yaml:"version"`
	Rules   []RuleSpec `yaml:"rules"`
}

// RuleSpec is the serialized form of a Rule. Template placeholders {n}
// insert the n-th captured group; "{{" and "}}" produce literal braces.
type RuleSpec struct {
	Name     string `yaml:"name"`
	Family   string `yaml:"family"`
	Match    string `yaml:"match"`    // e.g. '^terraform\s+plan(\s|$)'
	Template string `yaml:"template"` // e.g. 'rtk terraform plan{1}'
}

// LoadRulesFile reads and validates a rule file from disk.
func LoadRulesFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	return ParseRules(data, path)
}

// ParseRules parses and validates rule file contents. source is used in
// error messages only.
func ParseRules(data []byte, source string) (*RuleFile, error) {
	var f RuleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", source, err)
	}
	if errs := ValidateRuleFile(&f); len(errs) > 0 {
		return nil, &RuleFileError{Source: source, Errors: errs}
	}
	slog.Debug("loaded rules file", "path", source, "rules", len(f.Rules))
	return &f, nil
}

// RuleFileError aggregates validation failures of a rule file.
type RuleFileError struct {
	Source string
	Errors []ValidationError
}

func (e *RuleFileError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("invalid rules file %s:\n  %s", e.Source, strings.Join(msgs, "\n  "))
}

// Compile turns the specs into rules, in file order.
func (f *RuleFile) Compile() ([]Rule, error) {
	rules := make([]Rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		r, err := spec.Compile()
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Compile builds the Rule described by the spec.
func (s RuleSpec) Compile() (Rule, error) {
	m, err := Regexp(s.Match)
	if err != nil {
		return Rule{}, err
	}
	tmpl, err := ParseTemplate(s.Template, NumGroups(m))
	if err != nil {
		return Rule{}, err
	}
	family := s.Family
	if family == "" {
		family = s.Name
	}
	return Rule{Name: s.Name, Family: family, Matcher: m, Template: tmpl}, nil
}

type segment struct {
	literal string
	group   int // -1 for literal segments
}

// ParseTemplate parses a "{n}" placeholder template into a Template. When
// maxGroup is non-negative, placeholders above it are rejected.
func ParseTemplate(s string, maxGroup int) (Template, error) {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String(), group: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("template %q: unterminated placeholder at offset %d", s, i)
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("template %q: invalid placeholder %q", s, s[i:i+end+1])
			}
			if maxGroup >= 0 && n > maxGroup {
				return nil, fmt.Errorf("template %q: placeholder {%d} exceeds the %d group(s) of the pattern", s, n, maxGroup)
			}
			flush()
			segs = append(segs, segment{group: n})
			i += end
		case c == '}':
			return nil, fmt.Errorf("template %q: unbalanced '}' at offset %d", s, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return func(c Captures) string {
		var b strings.Builder
		for _, seg := range segs {
			if seg.group < 0 {
				b.WriteString(seg.literal)
			} else {
				b.WriteString(c.Group(seg.group))
			}
		}
		return b.String()
	}, nil
}

// Mode controls how custom rules combine with the built-in table.
type Mode string

const (
	ModeAppend  Mode = "append"  // built-in rules first, custom rules after
	ModePrepend Mode = "prepend" // custom rules take priority
	ModeReplace Mode = "replace" // custom rules only
)

// ParseMode validates a mode string. Empty means append.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModePrepend:
		return ModePrepend, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("invalid rules mode %q: must be append, prepend or replace", s)
	}
}

// Compose builds the effective table from the built-in rules and custom
// rules, then drops rules whose names appear in disabled.
func Compose(builtin Table, custom []Rule, mode Mode, disabled []string) (Table, error) {
	var rules []Rule
	switch mode {
	case "", ModeAppend:
		rules = append(builtin.Rules(), custom...)
	case ModePrepend:
		rules = append(append([]Rule{}, custom...), builtin.Rules()...)
	case ModeReplace:
		rules = append([]Rule{}, custom...)
	default:
		return Table{}, fmt.Errorf("unknown rules mode %q", mode)
	}

	if len(disabled) > 0 {
		skip := make(map[string]bool, len(disabled))
		for _, name := range disabled {
			skip[name] = true
		}
		kept := rules[:0]
		for _, r := range rules {
			if !skip[r.Name] {
				kept = append(kept, r)
			}
		}
		rules = kept
	}

	return NewTable(rules...), nil
}
