package content

import (
	"context"
	"fmt"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/cms"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Sites lists the sites of the installation.
type Sites struct {
	gw cms.Gateway
}

func (s *Sites) Namespace() string { return skills.BuiltinNamespace }
func (s *Sites) Name() string      { return "Sites" }

func (s *Sites) Functions() []skills.Function {
	return []skills.Function{
		skills.Define("listSites",
			"List all sites.",
			"Returns the handle, language and base URL of every site. The primary site is flagged.",
			s.listSites),
	}
}

func (s *Sites) listSites(ctx context.Context, _ skills.NoArgs) domain.ToolInvocationResult {
	sites, err := s.gw.Sites(ctx)
	if err != nil {
		return failure("sites", err)
	}
	return domain.SucceedWith(fmt.Sprintf("Found %d sites.", len(sites)), sites)
}
