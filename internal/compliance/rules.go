// Package compliance records advisory findings about failed provider operations.
// Findings never influence control flow.
package compliance

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Rule flags a failure as a compliance violation when Expr evaluates to true.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Severity    string `yaml:"severity" json:"severity"`
	Description string `yaml:"description" json:"description,omitempty"`

	// Expr is an expr-lang boolean expression over the variables
	// kind, provider, operation and message.
	Expr string `yaml:"expr" json:"expr"`

	program *vm.Program
}

// Input is the environment a rule expression is evaluated against.
type Input struct {
	Kind      string `expr:"kind"`
	Provider  string `expr:"provider"`
	Operation string `expr:"operation"`
	Message   string `expr:"message"`
}

// DefaultRules are applied unless disabled in the configuration.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "payload-protection",
			Severity:    SeverityHigh,
			Description: "patient data could not be sealed or opened",
			Expr:        `kind == "EncryptionError"`,
		},
		{
			Name:        "untrusted-auth-response",
			Severity:    SeverityMedium,
			Description: "provider returned a malformed authentication response",
			Expr:        `kind == "InvalidAuthResponse"`,
		},
		{
			Name:        "credential-rejection",
			Severity:    SeverityMedium,
			Description: "provider rejected the client credentials",
			Expr:        `kind == "InvalidCredentials"`,
		},
		{
			Name:        "timely-filing",
			Severity:    SeverityLow,
			Description: "claim could not be delivered to the provider",
			Expr:        `operation in ["claims.submit", "claims.update"] && kind in ["NetworkError", "RateLimitExceeded"]`,
		},
	}
}

// Compile checks and compiles the expressions of rules.
func Compile(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("compliance rule without name")
		}
		switch r.Severity {
		case SeverityLow, SeverityMedium, SeverityHigh:
		case "":
			r.Severity = SeverityMedium
		default:
			return nil, fmt.Errorf("compliance rule '%s': unknown severity '%s'", r.Name, r.Severity)
		}
		program, err := expr.Compile(r.Expr, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling expression of compliance rule '%s': %w", r.Name, err)
		}
		r.program = program
		out = append(out, r)
	}
	return out, nil
}

func (r Rule) matches(in Input) (bool, error) {
	if r.program == nil {
		return false, fmt.Errorf("compliance rule '%s' is not compiled", r.Name)
	}
	res, err := expr.Run(r.program, in)
	if err != nil {
		return false, err
	}
	b, ok := res.(bool)
	return ok && b, nil
}
