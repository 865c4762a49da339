package content

import (
	"context"
	"fmt"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/cms"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Sections lists the sections of the installation.
type Sections struct {
	gw cms.Gateway
}

func (s *Sections) Namespace() string { return skills.BuiltinNamespace }
func (s *Sections) Name() string      { return "Sections" }

type sectionArgs struct {
	Handle string `json:"handle" jsonschema_description:"Handle of the section."`
}

func (s *Sections) Functions() []skills.Function {
	return []skills.Function{
		skills.Define("listSections",
			"List all sections.",
			"Returns the id, handle, name and type of every section.",
			s.listSections),
		skills.Define("getSection",
			"Get one section by handle.",
			"",
			s.getSection),
	}
}

func (s *Sections) listSections(ctx context.Context, _ skills.NoArgs) domain.ToolInvocationResult {
	sections, err := s.gw.Sections(ctx)
	if err != nil {
		return failure("sections", err)
	}
	return domain.SucceedWith(fmt.Sprintf("Found %d sections.", len(sections)), sections)
}

func (s *Sections) getSection(ctx context.Context, args sectionArgs) domain.ToolInvocationResult {
	section, err := s.gw.Section(ctx, args.Handle)
	if err != nil {
		return failure(fmt.Sprintf("Section %q", args.Handle), err)
	}
	return domain.SucceedWith(fmt.Sprintf("Loaded section %s.", section.Handle), section)
}
