// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package templates evaluates installer criteria and resolves installer argument templates
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/kballard/go-shellquote"
	"github.com/tidwall/gjson"
)

var placeholderRx = regexp.MustCompile(`{{\s*(.*?)\s*}}`)

// Package describes the package being installed to templates and criteria
type Package struct {
	ID          string `json:"id" yaml:"id"`
	Version     string `json:"version" yaml:"version"`
	Channel     string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Platform    string `json:"platform" yaml:"platform"`
	Arch        string `json:"arch,omitempty" yaml:"arch,omitempty"`
	Target      string `json:"target,omitempty" yaml:"target,omitempty"`
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	ProductCode string `json:"product_code,omitempty" yaml:"product_code,omitempty"`
}

// Env is the environment expressions are evaluated in
type Env struct {
	Facts   map[string]any    `json:"facts" yaml:"facts"`
	Package Package           `json:"package" yaml:"package"`
	Environ map[string]string `json:"environ" yaml:"environ"`

	envJSON json.RawMessage
	mu      sync.Mutex
}

// NewEnv creates an environment holding facts, the package and the process environment
func NewEnv(facts map[string]any, pkg Package) *Env {
	environ := map[string]string{}
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if ok {
			environ[k] = v
		}
	}

	if facts == nil {
		facts = map[string]any{}
	}

	return &Env{Facts: facts, Package: pkg, Environ: environ}
}

func (e *Env) lookup(params ...any) (any, error) {
	var defaultValue any = ""

	if len(params) == 0 || len(params) > 2 {
		return nil, fmt.Errorf("lookup requires 1 or 2 arguments")
	}

	key, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("lookup requires a string argument")
	}

	if len(params) == 2 {
		defaultValue = params[1]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.envJSON == nil {
		j, err := json.Marshal(e)
		if err != nil {
			return "", err
		}
		e.envJSON = j
	}

	res := gjson.GetBytes(e.envJSON, key)
	if !res.Exists() {
		return defaultValue, nil
	}

	if res.Type == gjson.Number {
		if strings.Contains(res.Raw, ".") {
			return res.Float(), nil
		}

		return res.Int(), nil
	}

	return res.Value(), nil
}

// Criteria evaluates a boolean expression, an empty expression is true
func Criteria(expression string, env *Env) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool(), expr.Function("lookup", env.lookup))
	if err != nil {
		return false, fmt.Errorf("criteria compile error for '%s': %w", expression, err)
	}

	res, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("criteria error for '%s': %w", expression, err)
	}

	b, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("criteria '%s' did not return a boolean", expression)
	}

	return b, nil
}

// ResolveTemplateString resolves {{ expression }} placeholders in a template string and returns the result as a string
func ResolveTemplateString(template string, env *Env) (string, error) {
	if template == "" {
		return "", nil
	}

	matches := placeholderRx.FindAllStringSubmatchIndex(template, -1)
	if matches == nil {
		return template, nil
	}

	var result strings.Builder
	lastIndex := 0

	for _, loc := range matches {
		fullStart, fullEnd := loc[0], loc[1]
		innerStart, innerEnd := loc[2], loc[3]

		value, err := exprParse(template[innerStart:innerEnd], env)
		if err != nil {
			return "", err
		}

		result.WriteString(template[lastIndex:fullStart])
		if value != nil {
			result.WriteString(fmt.Sprint(value))
		}

		lastIndex = fullEnd
	}

	result.WriteString(template[lastIndex:])

	return result.String(), nil
}

// ResolveArgs resolves template and splits the result into arguments using shell quoting rules
func ResolveArgs(template string, env *Env) ([]string, error) {
	resolved, err := ResolveTemplateString(template, env)
	if err != nil {
		return nil, err
	}

	args, err := shellquote.Split(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments %q: %w", resolved, err)
	}

	return args, nil
}

func exprParse(query string, env *Env) (any, error) {
	program, err := expr.Compile(query, expr.Env(env), expr.Function("lookup", env.lookup))
	if err != nil {
		return "", fmt.Errorf("expr compile error for '%s': %w", query, err)
	}

	return expr.Run(program, env)
}
