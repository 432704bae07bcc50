// Package template expands ${VAR} references in text.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var varPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Substitute replaces shell-style variable references in input with values
// from vars. Supported forms:
//
//	${VAR}          value, or empty when unset
//	${VAR:-default} default when VAR is unset or empty
//	${VAR-default}  default when VAR is unset
//	${VAR:?message} error when VAR is unset or empty
//	${VAR?message}  error when VAR is unset
//
// Only vars is consulted; the process environment is not.
func Substitute(input string, vars map[string]string) (string, error) {
	var firstErr error
	out := varPattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		value, err := evaluate(match[2:len(match)-1], vars)
		if err != nil {
			firstErr = err
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// MustSubstitute is Substitute for templates whose variables are known to be set.
func MustSubstitute(input string, vars map[string]string) string {
	out, err := Substitute(input, vars)
	if err != nil {
		panic(err)
	}
	return out
}

func evaluate(expr string, vars map[string]string) (string, error) {
	name, op, operand := splitExpression(expr)
	value, exists := vars[name]

	switch op {
	case "":
		return value, nil
	case "-":
		if exists {
			return value, nil
		}
		return operand, nil
	case ":-":
		if value != "" {
			return value, nil
		}
		return operand, nil
	case "?":
		if exists {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set: %s", name, operand)
	case ":?":
		if value != "" {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set or empty: %s", name, operand)
	}
	return "", fmt.Errorf("invalid variable expression: ${%s}", expr)
}

// splitExpression finds the first operator in expr. Two-character
// operators take precedence over their one-character forms.
func splitExpression(expr string) (name, op, operand string) {
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case ':':
			if i+1 < len(expr) && (expr[i+1] == '-' || expr[i+1] == '?') {
				return strings.TrimSpace(expr[:i]), expr[i : i+2], expr[i+2:]
			}
		case '-', '?':
			return strings.TrimSpace(expr[:i]), expr[i : i+1], expr[i+1:]
		}
	}
	return strings.TrimSpace(expr), "", ""
}
