package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/cms"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Entries reads and writes content entries.
type Entries struct {
	gw cms.Gateway
}

func (e *Entries) Namespace() string { return skills.BuiltinNamespace }
func (e *Entries) Name() string      { return "Entries" }

type entryIDArgs struct {
	EntryID int `json:"entryId" jsonschema_description:"ID of the entry."`
}

type createEntryArgs struct {
	Section string `json:"section" jsonschema_description:"Handle of the section the entry belongs to."`
	Title   string `json:"title" jsonschema_description:"Title of the entry."`
	Fields  string `json:"fields" jsonschema_description:"JSON object of field handles to values. Use {} for none."`
}

type updateEntryArgs struct {
	EntryID int    `json:"entryId" jsonschema_description:"ID of the entry."`
	Title   string `json:"title" jsonschema_description:"New title, or an empty string to keep the current one."`
	Fields  string `json:"fields" jsonschema_description:"JSON object of field handles to new values. Use {} for none."`
}

func (e *Entries) Functions() []skills.Function {
	return []skills.Function{
		skills.Define("getEntry",
			"Get an entry by ID.",
			"Returns the title, slug, section and field values of the entry.",
			e.getEntry),
		skills.Define("createEntry",
			"Create a new entry.",
			"The entry is created enabled on the primary site.",
			e.createEntry),
		skills.Define("updateEntry",
			"Update the title or field values of an existing entry.",
			"Only the given fields are changed.",
			e.updateEntry, skills.RequiresHost("4.0")),
	}
}

func decodeFields(raw string) (map[string]any, error) {
	fields := map[string]any{}
	if raw == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("fields must be a JSON object: %w", err)
	}
	return fields, nil
}

func (e *Entries) getEntry(ctx context.Context, args entryIDArgs) domain.ToolInvocationResult {
	entry, err := e.gw.Entry(ctx, args.EntryID)
	if err != nil {
		return failure(fmt.Sprintf("Entry %d", args.EntryID), err)
	}
	return domain.SucceedWith(fmt.Sprintf("Loaded entry %d.", entry.ID), entry)
}

func (e *Entries) createEntry(ctx context.Context, args createEntryArgs) domain.ToolInvocationResult {
	fields, err := decodeFields(args.Fields)
	if err != nil {
		return domain.Fail(err.Error())
	}
	entry, err := e.gw.CreateEntry(ctx, cms.Entry{
		Section: args.Section,
		Title:   args.Title,
		Enabled: true,
		Fields:  fields,
	})
	if err != nil {
		return domain.Fail(fmt.Sprintf("Unable to create entry: %v", err))
	}
	return domain.SucceedWith(fmt.Sprintf("Entry %q created with ID %d.", entry.Title, entry.ID), entry)
}

func (e *Entries) updateEntry(ctx context.Context, args updateEntryArgs) domain.ToolInvocationResult {
	fields, err := decodeFields(args.Fields)
	if err != nil {
		return domain.Fail(err.Error())
	}
	entry, err := e.gw.UpdateEntry(ctx, args.EntryID, args.Title, fields)
	if err != nil {
		return failure(fmt.Sprintf("Entry %d", args.EntryID), err)
	}
	return domain.SucceedWith(fmt.Sprintf("Entry %d updated.", entry.ID), entry)
}
