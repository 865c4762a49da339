// Package content provides the skills that read and edit the host's
// sections, fields, entries and sites.
package content

import (
	"errors"
	"fmt"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/cms"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Skills returns all content skills backed by gw.
func Skills(gw cms.Gateway) []skills.Skill {
	return []skills.Skill{
		&Sections{gw: gw},
		&Fields{gw: gw},
		&Entries{gw: gw},
		&Sites{gw: gw},
	}
}

func failure(what string, err error) domain.ToolInvocationResult {
	if errors.Is(err, cms.ErrNotFound) {
		return domain.Fail(fmt.Sprintf("%s not found.", what))
	}
	return domain.Fail(fmt.Sprintf("Unable to load %s: %v", what, err))
}
