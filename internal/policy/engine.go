// Package policy decides which tools are exposed to the model using OPA.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content. The
// policy must define the set data.sidekick.tools.reasons.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.sidekick.tools.reasons"),
		rego.Module("tools.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Load creates an engine from a policy file, or from DefaultPolicy when path
// is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(data))
}

// Denials returns the reasons the policy gives for hiding the candidate.
func (e *Engine) Denials(ctx context.Context, c skills.Candidate, env skills.Env) ([]string, error) {
	input := map[string]interface{}{
		"namespace":        c.Namespace,
		"skill":            c.Skill,
		"function":         c.Function,
		"mutating":         c.Mutating,
		"min_host_version": normalizeVersion(c.MinHostVersion),
		"env": map[string]interface{}{
			"host_version":        normalizeVersion(env.HostVersion),
			"allow_admin_changes": env.AllowAdminChanges,
		},
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	set, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result %T", results[0].Expressions[0].Value)
	}
	reasons := make([]string, 0, len(set))
	for _, v := range set {
		reasons = append(reasons, fmt.Sprint(v))
	}
	sort.Strings(reasons)
	return reasons, nil
}

// normalizeVersion pads a dotted version to major.minor.patch so it can be
// compared with semver.compare. Pre-release suffixes are kept.
func normalizeVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return ""
	}
	core, suffix, _ := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	out := strings.Join(parts[:3], ".")
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package sidekick.tools

# Changes to the installation are off limits when admin changes are disabled.
reasons["administrative changes are disabled"] {
	input.mutating
	not input.env.allow_admin_changes
}

reasons[msg] {
	input.min_host_version != ""
	input.env.host_version != ""
	semver.compare(input.env.host_version, input.min_host_version) < 0
	msg := sprintf("requires host version %s or later", [input.min_host_version])
}
`
