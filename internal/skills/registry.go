package skills

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sashabaranov/go-openai"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// MaxToolNameLength is the longest tool name the remote service accepts.
const MaxToolNameLength = 64

// NameSeparator joins the parts of an encoded tool name.
const NameSeparator = "-"

const namespaceHashLength = 6

var (
	// ErrNameTooLong is returned by Build when an encoded tool name exceeds
	// MaxToolNameLength.
	ErrNameTooLong = errors.New("encoded tool name too long")
	// ErrToolNotFound is returned when an encoded name does not resolve to a
	// registered function.
	ErrToolNotFound = errors.New("tool not found")
)

// Gate decides whether a function is exposed in a given environment. Any
// returned reason hides the function.
type Gate interface {
	Denials(ctx context.Context, candidate Candidate, env Env) ([]string, error)
}

// Candidate is a function presented to the Gate.
type Candidate struct {
	Namespace      string `json:"namespace"`
	Skill          string `json:"skill"`
	Function       string `json:"function"`
	Mutating       bool   `json:"mutating"`
	MinHostVersion string `json:"min_host_version"`
}

// Registry holds the skills known to the service. It is built once at
// startup and handed to the run engine.
type Registry struct {
	mu         sync.Mutex
	skills     []Skill
	extensions []func(*Registry)
	gate       Gate
	logger     *slog.Logger
}

// NewRegistry creates a registry populated with skills.
func NewRegistry(logger *slog.Logger, skills ...Skill) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{skills: skills, logger: logger}
}

// Register adds skills to the registry.
func (r *Registry) Register(skills ...Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills = append(r.skills, skills...)
}

// Extend adds a callback that may register further skills. Callbacks run on
// every Build against a fresh copy of the registry.
func (r *Registry) Extend(fn func(*Registry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions = append(r.extensions, fn)
}

// SetGate installs the policy gate consulted by Build.
func (r *Registry) SetGate(g Gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = g
}

// Skills returns the registered skills, extensions excluded.
func (r *Registry) Skills() []Skill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.skills)
}

// Build computes the catalog of tools available in env. It fails when a
// skill is malformed or an encoded name exceeds MaxToolNameLength.
func (r *Registry) Build(ctx context.Context, env Env) (*Catalog, error) {
	r.mu.Lock()
	staged := &Registry{skills: slices.Clone(r.skills), logger: r.logger}
	extensions := slices.Clone(r.extensions)
	gate := r.gate
	r.mu.Unlock()

	for _, ext := range extensions {
		ext(staged)
	}

	c := &Catalog{
		functions:  make(map[string]*entry),
		namespaces: make(map[string]string),
		env:        env,
	}

	for _, skill := range staged.skills {
		ns := skill.Namespace()
		class := skill.Name()
		if ns == "" || class == "" {
			return nil, fmt.Errorf("skill %T has no namespace or name", skill)
		}
		if strings.Contains(class, NameSeparator) {
			return nil, fmt.Errorf("skill name %q must not contain %q", class, NameSeparator)
		}

		hash := NamespaceHash(ns)
		if existing, ok := c.namespaces[hash]; ok && existing != ns {
			return nil, fmt.Errorf("namespace hash collision between %q and %q", existing, ns)
		}
		c.namespaces[hash] = ns

		var restricted []string
		if rs, ok := skill.(Restricter); ok {
			restricted = rs.RestrictedFunctions(env)
		}

		for _, fn := range skill.Functions() {
			if fn.invoke == nil {
				return nil, fmt.Errorf("function %s.%s was not declared with Define", class, fn.Name)
			}
			if fn.Name == "" || strings.Contains(fn.Name, NameSeparator) {
				return nil, fmt.Errorf("invalid function name %q on %s", fn.Name, class)
			}

			name := EncodeName(ns, class, fn.Name)
			if len(name) > MaxToolNameLength {
				return nil, fmt.Errorf("%w: %s is %d characters (max %d)", ErrNameTooLong, name, len(name), MaxToolNameLength)
			}
			if _, dup := c.functions[name]; dup {
				return nil, fmt.Errorf("duplicate tool %s", name)
			}

			if slices.Contains(restricted, fn.Name) {
				r.logger.Debug("tool restricted by skill", "tool", name)
				continue
			}
			if gate != nil {
				reasons, err := gate.Denials(ctx, Candidate{
					Namespace:      ns,
					Skill:          class,
					Function:       fn.Name,
					Mutating:       fn.Mutating,
					MinHostVersion: fn.MinHostVersion,
				}, env)
				if err != nil {
					return nil, fmt.Errorf("policy evaluation for %s: %w", name, err)
				}
				if len(reasons) > 0 {
					r.logger.Debug("tool restricted by policy", "tool", name, "reasons", reasons)
					continue
				}
			}

			if err := c.add(name, ToolRef{Namespace: ns, Skill: class}, fn); err != nil {
				return nil, err
			}
		}
	}

	fp, err := c.computeFingerprint()
	if err != nil {
		return nil, err
	}
	c.fingerprint = fp
	return c, nil
}

// NamespaceHash returns the short hash of a namespace used in tool names.
func NamespaceHash(namespace string) string {
	sum := sha256.Sum256([]byte(namespace))
	return hex.EncodeToString(sum[:])[:namespaceHashLength]
}

// EncodeName builds the tool name of a function.
func EncodeName(namespace, skill, function string) string {
	return NamespaceHash(namespace) + NameSeparator + skill + NameSeparator + function
}

// ToolRef identifies the skill a tool belongs to.
type ToolRef struct {
	Namespace string
	Skill     string
}

// Class returns the fully qualified skill name.
func (r ToolRef) Class() string {
	return r.Namespace + "." + r.Skill
}

type entry struct {
	ref        ToolRef
	fn         Function
	descriptor domain.ToolDescriptor
	validator  *jsonschema.Schema
}

// Catalog is the immutable set of tools built from a Registry.
type Catalog struct {
	descriptors []domain.ToolDescriptor
	tools       []openai.AssistantTool
	functions   map[string]*entry
	namespaces  map[string]string
	fingerprint string
	env         Env
}

func (c *Catalog) add(name string, ref ToolRef, fn Function) error {
	schema := fn.schema()
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema of %s: %w", name, err)
	}
	validator, err := jsonschema.CompileString(name+".json", string(raw))
	if err != nil {
		return fmt.Errorf("compile schema of %s: %w", name, err)
	}

	description := strings.TrimSpace(strings.TrimSpace(fn.Summary) + "\n\n" + strings.TrimSpace(fn.Description))
	desc := domain.ToolDescriptor{
		EncodedName: name,
		Namespace:   ref.Namespace,
		Skill:       ref.Skill,
		Function:    fn.Name,
		Description: description,
		Parameters:  parameters(schema),
		Schema:      raw,
		Mutating:    fn.Mutating,
	}

	c.functions[name] = &entry{ref: ref, fn: fn, descriptor: desc, validator: validator}
	c.descriptors = append(c.descriptors, desc)
	c.tools = append(c.tools, openai.AssistantTool{
		Type: openai.AssistantToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Strict:      true,
			Parameters:  json.RawMessage(raw),
		},
	})
	return nil
}

func (c *Catalog) computeFingerprint() (string, error) {
	data, err := json.Marshal(c.tools)
	if err != nil {
		return "", fmt.Errorf("encode tool schema: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Resolve decodes an encoded tool name into the skill it belongs to and the
// function name. It does not check that the function is exposed.
func (c *Catalog) Resolve(name string) (ToolRef, string, error) {
	parts := strings.SplitN(name, NameSeparator, 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return ToolRef{}, "", fmt.Errorf("%w: malformed name %q", ErrToolNotFound, name)
	}
	ns, ok := c.namespaces[parts[0]]
	if !ok {
		return ToolRef{}, "", fmt.Errorf("%w: unknown namespace hash %q", ErrToolNotFound, parts[0])
	}
	return ToolRef{Namespace: ns, Skill: parts[1]}, parts[2], nil
}

// Lookup returns the descriptor of an exposed tool.
func (c *Catalog) Lookup(name string) (domain.ToolDescriptor, bool) {
	e, ok := c.functions[name]
	if !ok {
		return domain.ToolDescriptor{}, false
	}
	return e.descriptor, true
}

// Descriptors returns the exposed tools in registration order.
func (c *Catalog) Descriptors() []domain.ToolDescriptor {
	return slices.Clone(c.descriptors)
}

// AssistantTools returns the tool schema sent to the remote assistant.
func (c *Catalog) AssistantTools() []openai.AssistantTool {
	return slices.Clone(c.tools)
}

// Namespaces returns the namespace hash table.
func (c *Catalog) Namespaces() map[string]string {
	out := make(map[string]string, len(c.namespaces))
	for k, v := range c.namespaces {
		out[k] = v
	}
	return out
}

// Fingerprint is a content hash of the exposed tool schema.
func (c *Catalog) Fingerprint() string { return c.fingerprint }

// Env returns the environment the catalog was built for.
func (c *Catalog) Env() Env { return c.env }

// Len returns the number of exposed tools.
func (c *Catalog) Len() int { return len(c.descriptors) }
