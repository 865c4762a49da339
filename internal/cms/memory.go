package cms

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process Gateway used in mock mode and tests.
type Memory struct {
	mu       sync.RWMutex
	sections []Section
	fields   []Field
	sites    []Site
	entries  map[int]*Entry
	nextID   int
}

// NewMemory creates a gateway with a small default installation.
func NewMemory() *Memory {
	return &Memory{
		sections: []Section{
			{ID: 1, Handle: "blog", Name: "Blog", Type: "channel"},
			{ID: 2, Handle: "pages", Name: "Pages", Type: "structure"},
			{ID: 3, Handle: "homepage", Name: "Homepage", Type: "single"},
		},
		fields: []Field{
			{ID: 1, Handle: "summary", Name: "Summary", Type: "PlainText"},
			{ID: 2, Handle: "body", Name: "Body", Type: "Ckeditor"},
			{ID: 3, Handle: "featuredImage", Name: "Featured Image", Type: "Assets"},
		},
		sites: []Site{
			{ID: 1, Handle: "default", Name: "Default", Language: "en-US", BaseURL: "https://example.test/", Primary: true},
		},
		entries: make(map[int]*Entry),
		nextID:  100,
	}
}

func (m *Memory) Sections(context.Context) ([]Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sections), nil
}

func (m *Memory) Section(_ context.Context, handle string) (*Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sections {
		if strings.EqualFold(s.Handle, handle) {
			s := s
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Fields(context.Context) ([]Field, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.fields), nil
}

func (m *Memory) Entry(_ context.Context, id int) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (m *Memory) CreateEntry(ctx context.Context, entry Entry) (*Entry, error) {
	if _, err := m.Section(ctx, entry.Section); err != nil {
		return nil, fmt.Errorf("section %q: %w", entry.Section, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry.ID = m.nextID
	if entry.SiteID == 0 {
		entry.SiteID = 1
	}
	if entry.Slug == "" {
		entry.Slug = slugify(entry.Title)
	}
	m.entries[entry.ID] = cloneEntry(&entry)
	return cloneEntry(&entry), nil
}

func (m *Memory) UpdateEntry(_ context.Context, id int, title string, fields map[string]any) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if title != "" {
		e.Title = title
	}
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	maps.Copy(e.Fields, fields)
	return cloneEntry(e), nil
}

func (m *Memory) Sites(context.Context) ([]Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sites), nil
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	c.Fields = maps.Clone(e.Fields)
	return &c
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
