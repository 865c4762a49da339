package content

import (
	"context"
	"fmt"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/cms"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Fields lists custom field definitions.
type Fields struct {
	gw cms.Gateway
}

func (f *Fields) Namespace() string { return skills.BuiltinNamespace }
func (f *Fields) Name() string      { return "Fields" }

func (f *Fields) Functions() []skills.Function {
	return []skills.Function{
		skills.Define("listFields",
			"List all custom fields.",
			"Returns the handle, name and type of every field. Use the handles when setting entry content.",
			f.listFields),
	}
}

func (f *Fields) listFields(ctx context.Context, _ skills.NoArgs) domain.ToolInvocationResult {
	fields, err := f.gw.Fields(ctx)
	if err != nil {
		return failure("fields", err)
	}
	return domain.SucceedWith(fmt.Sprintf("Found %d fields.", len(fields)), fields)
}
