// Package cms provides access to the content of the host installation.
package cms

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested element does not exist.
var ErrNotFound = errors.New("not found")

// Section groups entries of one kind.
type Section struct {
	ID     int    `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// Field is a custom field definition.
type Field struct {
	ID           int    `json:"id"`
	Handle       string `json:"handle"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Instructions string `json:"instructions,omitempty"`
}

// Entry is one content entry.
type Entry struct {
	ID      int            `json:"id"`
	Section string         `json:"section"`
	Title   string         `json:"title"`
	Slug    string         `json:"slug"`
	SiteID  int            `json:"site_id"`
	Enabled bool           `json:"enabled"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Site is one site of a multi-site installation.
type Site struct {
	ID       int    `json:"id"`
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Language string `json:"language"`
	BaseURL  string `json:"base_url"`
	Primary  bool   `json:"primary"`
}

// Gateway is the narrow interface the content skills use.
type Gateway interface {
	Sections(ctx context.Context) ([]Section, error)
	Section(ctx context.Context, handle string) (*Section, error)
	Fields(ctx context.Context) ([]Field, error)
	Entry(ctx context.Context, id int) (*Entry, error)
	CreateEntry(ctx context.Context, entry Entry) (*Entry, error)
	UpdateEntry(ctx context.Context, id int, title string, fields map[string]any) (*Entry, error)
	Sites(ctx context.Context) ([]Site, error)
}
