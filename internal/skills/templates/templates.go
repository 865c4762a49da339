// Package templates provides the skill that manages the host's template files.
package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

const maxReadBytes = 256 << 10

// Skill reads and writes files below a templates root folder.
type Skill struct {
	root string
}

// New creates the skill rooted at root.
func New(root string) *Skill {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Skill{root: root}
}

func (s *Skill) Namespace() string { return skills.BuiltinNamespace }
func (s *Skill) Name() string      { return "Templates" }

// RestrictedFunctions hides the write functions when admin changes are off.
func (s *Skill) RestrictedFunctions(env skills.Env) []string {
	if env.AllowAdminChanges {
		return nil
	}
	return []string{"createFile", "updateFile", "deleteFile"}
}

type listArgs struct {
	Directory string `json:"directory" jsonschema_description:"Folder to list, relative to the templates folder. Use an empty string for the root."`
}

type fileArgs struct {
	File string `json:"file" jsonschema_description:"Path of the file, relative to the templates folder."`
}

type writeArgs struct {
	File    string `json:"file" jsonschema_description:"Path of the file, relative to the templates folder."`
	Content string `json:"content" jsonschema_description:"Complete contents of the file."`
}

func (s *Skill) Functions() []skills.Function {
	return []skills.Function{
		skills.Define("listFiles",
			"List the template files in a folder.",
			"Returns the relative paths of all files below the folder, recursively.",
			s.listFiles),
		skills.Define("readFile",
			"Read the contents of a template file.",
			"Use this before changing an existing file.",
			s.readFile),
		skills.Define("createFile",
			"Create a new template file.",
			"Fails if the file already exists. Missing folders are created.",
			s.createFile, skills.Mutating()),
		skills.Define("updateFile",
			"Replace the contents of an existing template file.",
			"The whole file is overwritten with the given content.",
			s.updateFile, skills.Mutating()),
		skills.Define("deleteFile",
			"Delete a template file.",
			"",
			s.deleteFile, skills.Mutating()),
	}
}

// resolve maps a model-supplied path onto the templates root. Paths may be
// given relative to the root, with a leading slash, or prefixed with the
// templates folder itself.
func (s *Skill) resolve(p string) (string, string, error) {
	rel := filepath.ToSlash(strings.TrimSpace(p))
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimPrefix(rel, "templates/")
	rel = path.Clean("/" + rel)[1:]
	if rel == "" {
		return s.root, "", nil
	}

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %s is outside the templates folder", p)
	}
	return full, rel, nil
}

func (s *Skill) listFiles(_ context.Context, args listArgs) domain.ToolInvocationResult {
	dir, rel, err := s.resolve(args.Directory)
	if err != nil {
		return domain.Fail(err.Error())
	}
	var files []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		r, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(r))
		return nil
	})
	if err != nil {
		return domain.Fail(fmt.Sprintf("Unable to list %q: %v", rel, err))
	}
	sort.Strings(files)
	return domain.SucceedWith(fmt.Sprintf("Found %d files.", len(files)), files)
}

func (s *Skill) readFile(_ context.Context, args fileArgs) domain.ToolInvocationResult {
	target, rel, err := s.resolve(args.File)
	if err != nil {
		return domain.Fail(err.Error())
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return domain.Fail(fmt.Sprintf("File %s does not exist.", rel))
	}
	if info.Size() > maxReadBytes {
		return domain.Fail(fmt.Sprintf("File %s is too large to read.", rel))
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return domain.Fail(fmt.Sprintf("Unable to read %s: %v", rel, err))
	}
	return domain.SucceedWith(fmt.Sprintf("Read %s.", rel), map[string]string{
		"file":    rel,
		"content": string(data),
	})
}

func (s *Skill) createFile(_ context.Context, args writeArgs) domain.ToolInvocationResult {
	target, rel, err := s.resolve(args.File)
	if err != nil {
		return domain.Fail(err.Error())
	}
	if rel == "" {
		return domain.Fail("A file name is required.")
	}
	if _, err := os.Stat(target); err == nil {
		return domain.Fail(fmt.Sprintf("File %s already exists.", rel))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return domain.Fail(fmt.Sprintf("Unable to create folder for %s: %v", rel, err))
	}
	if err := os.WriteFile(target, []byte(args.Content), 0o644); err != nil {
		return domain.Fail(fmt.Sprintf("Unable to create %s: %v", rel, err))
	}
	return domain.Succeed(fmt.Sprintf("File %s created.", rel))
}

func (s *Skill) updateFile(_ context.Context, args writeArgs) domain.ToolInvocationResult {
	target, rel, err := s.resolve(args.File)
	if err != nil {
		return domain.Fail(err.Error())
	}
	if info, err := os.Stat(target); err != nil || info.IsDir() {
		return domain.Fail(fmt.Sprintf("File %s does not exist.", rel))
	}
	if err := os.WriteFile(target, []byte(args.Content), 0o644); err != nil {
		return domain.Fail(fmt.Sprintf("Unable to update %s: %v", rel, err))
	}
	return domain.Succeed(fmt.Sprintf("File %s updated.", rel))
}

func (s *Skill) deleteFile(_ context.Context, args fileArgs) domain.ToolInvocationResult {
	target, rel, err := s.resolve(args.File)
	if err != nil {
		return domain.Fail(err.Error())
	}
	if rel == "" {
		return domain.Fail("A file name is required.")
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Fail(fmt.Sprintf("File %s does not exist.", rel))
		}
		return domain.Fail(fmt.Sprintf("Unable to delete %s: %v", rel, err))
	}
	return domain.Succeed(fmt.Sprintf("File %s deleted.", rel))
}
