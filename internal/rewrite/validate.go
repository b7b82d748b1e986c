package rewrite

import (
	"fmt"
	"strings"
)

// ValidationError describes a single validation failure in a rule file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateRuleFile checks a rule file for schema correctness.
func ValidateRuleFile(f *RuleFile) []ValidationError {
	var errs []ValidationError

	if f.Version < 1 {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: "must be >= 1",
		})
	}

	names := make(map[string]int)
	for i, spec := range f.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)

		if spec.Name == "" {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: "is required"})
		} else if first, dup := names[spec.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate rule name %q (first defined at rules[%d])", spec.Name, first),
			})
		} else {
			names[spec.Name] = i
		}

		groups := -1
		switch {
		case spec.Match == "":
			errs = append(errs, ValidationError{Field: prefix + ".match", Message: "is required"})
		default:
			m, err := Regexp(spec.Match)
			if err != nil {
				errs = append(errs, ValidationError{Field: prefix + ".match", Message: err.Error()})
			} else {
				groups = NumGroups(m)
			}
		}

		switch {
		case spec.Template == "":
			errs = append(errs, ValidationError{Field: prefix + ".template", Message: "is required"})
		case !strings.HasPrefix(spec.Template, ProxyToken+" "):
			// Output that does not start with the proxy token would be
			// rewritten again on the next pass.
			errs = append(errs, ValidationError{
				Field:   prefix + ".template",
				Message: fmt.Sprintf("must start with %q", ProxyToken+" "),
			})
		default:
			if _, err := ParseTemplate(spec.Template, groups); err != nil {
				errs = append(errs, ValidationError{Field: prefix + ".template", Message: err.Error()})
			}
		}
	}

	return errs
}
