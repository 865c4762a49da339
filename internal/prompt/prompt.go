// Package prompt compiles the system instructions sent to the assistant.
//
// Static instruction documents come first, in file name order, followed by
// the parts that depend on the running installation. Keeping the static part
// stable lets the remote service cache it.
package prompt

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

//go:embed prompts/*.md
var defaultFiles embed.FS

// Defaults returns the shipped instruction documents.
func Defaults() fs.FS {
	sub, err := fs.Sub(defaultFiles, "prompts")
	if err != nil {
		panic(err)
	}
	return sub
}

const separator = "\n\n---\n\n"

// Compiler builds the system instructions.
type Compiler struct {
	sources []fs.FS
}

// NewCompiler creates a compiler reading .md documents from each source in
// turn.
func NewCompiler(sources ...fs.FS) *Compiler {
	if len(sources) == 0 {
		sources = []fs.FS{Defaults()}
	}
	return &Compiler{sources: sources}
}

// WithDir returns a compiler that also reads documents from dir after the
// shipped ones. An empty dir returns the default compiler.
func WithDir(dir string) *Compiler {
	if dir == "" {
		return NewCompiler()
	}
	return NewCompiler(Defaults(), os.DirFS(dir))
}

// Static returns the concatenated instruction documents.
func (c *Compiler) Static() (string, error) {
	var parts []string
	for _, src := range c.sources {
		names, err := fs.Glob(src, "*.md")
		if err != nil {
			return "", fmt.Errorf("list instructions: %w", err)
		}
		sort.Strings(names)
		for _, name := range names {
			data, err := fs.ReadFile(src, name)
			if err != nil {
				return "", fmt.Errorf("read instructions %s: %w", path.Base(name), err)
			}
			if text := strings.TrimSpace(string(data)); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, separator), nil
}

// Compile returns the full instructions for catalog and env.
func (c *Compiler) Compile(_ context.Context, catalog *skills.Catalog, env skills.Env) (string, error) {
	static, err := c.Static()
	if err != nil {
		return "", err
	}

	parts := []string{}
	if static != "" {
		parts = append(parts, static)
	}
	parts = append(parts, namespaceTable(catalog), environment(env))
	return strings.Join(parts, separator), nil
}

func namespaceTable(catalog *skills.Catalog) string {
	ns := catalog.Namespaces()
	hashes := make([]string, 0, len(ns))
	for h := range ns {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	var b strings.Builder
	b.WriteString("# Tool namespaces\n\n| Hash | Namespace |\n|---|---|\n")
	for _, h := range hashes {
		fmt.Fprintf(&b, "| %s | %s |\n", h, ns[h])
	}
	return strings.TrimRight(b.String(), "\n")
}

func environment(env skills.Env) string {
	admin := "allowed"
	if !env.AllowAdminChanges {
		admin = "disabled"
	}
	lines := []string{
		"# Environment",
		"",
		"- Host version: " + orUnknown(env.HostVersion),
		"- Administrative changes: " + admin,
		"- Sidekick version: " + orUnknown(env.ServiceVersion),
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
