// Package security validates the identifiers and raw SQL fragments that
// relation descriptors carry before they are spliced into recursive queries.
package security

import (
	"fmt"
	"regexp"
)

// identifier accepts a name or a table-qualified name.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

type rule struct {
	what string
	re   *regexp.Regexp
}

func rules(pairs ...string) []rule {
	out := make([]rule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, rule{what: pairs[i], re: regexp.MustCompile(`(?i)` + pairs[i+1])})
	}
	return out
}

// A scope predicate never needs any of these.
var baseRules = rules(
	"comment", `--\s|#\s|/\*.*\*/`,
	"stacked statement", `;`,
	"schema change", `\b(DROP\s+(TABLE|DATABASE)|TRUNCATE\s|ALTER\s+TABLE)\b`,
	"procedure call", `XP_CMDSHELL|SP_EXECUTESQL|\bEXEC\s*\(`,
	"time delay", `PG_SLEEP\s*\(|BENCHMARK\s*\(|WAITFOR\s+DELAY`,
	"tautology", `\sOR\s+('1'\s*=\s*'1'|1\s*=\s*1\b)`,
)

// strictRules also reject legitimate subqueries.
var strictRules = rules(
	"subquery", `\b(UNION|SELECT)\b`,
	"procedure call", `\bEXEC\b`,
)

// Validator checks descriptor input. The zero value is not usable; call
// NewValidator.
type Validator struct {
	rules []rule
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*validatorConfig)

type validatorConfig struct{ strict bool }

// WithStrict also rejects UNION, SELECT and EXEC anywhere in a fragment.
func WithStrict(strict bool) ValidatorOption {
	return func(c *validatorConfig) { c.strict = strict }
}

// NewValidator builds a Validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	var cfg validatorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	v := &Validator{rules: baseRules}
	if cfg.strict {
		v.rules = append(append([]rule(nil), baseRules...), strictRules...)
	}
	return v
}

// ValidateIdentifier accepts "col" and "table.col".
func (v *Validator) ValidateIdentifier(name string) error {
	if identifier.MatchString(name) {
		return nil
	}
	return fmt.Errorf("invalid identifier %q", name)
}

// ValidateFragment rejects a raw predicate that contains a forbidden construct.
func (v *Validator) ValidateFragment(fragment string) error {
	for _, r := range v.rules {
		if r.re.MatchString(fragment) {
			return fmt.Errorf("%s not allowed in fragment %q", r.what, fragment)
		}
	}
	return nil
}
