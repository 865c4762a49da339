// Package system provides the skill describing the running installation.
package system

import (
	"context"
	"runtime"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Skill reports environment details to the model.
type Skill struct {
	env skills.Env
}

// New creates the skill for env.
func New(env skills.Env) *Skill {
	return &Skill{env: env}
}

func (s *Skill) Namespace() string { return skills.BuiltinNamespace }
func (s *Skill) Name() string      { return "System" }

func (s *Skill) Functions() []skills.Function {
	return []skills.Function{
		skills.Define("getSystemInfo",
			"Get information about the installation.",
			"Includes the host version and whether administrative changes are allowed.",
			s.getSystemInfo),
	}
}

func (s *Skill) getSystemInfo(context.Context, skills.NoArgs) domain.ToolInvocationResult {
	return domain.SucceedWith("Loaded system information.", map[string]any{
		"host_version":        s.env.HostVersion,
		"allow_admin_changes": s.env.AllowAdminChanges,
		"service_version":     s.env.ServiceVersion,
		"go_version":          runtime.Version(),
	})
}
