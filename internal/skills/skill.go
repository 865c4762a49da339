// Package skills exposes server-side functions to the assistant as tools.
//
// A Skill groups related functions under a namespace. Each function declares
// its arguments as a Go struct; the struct fields become the tool's
// parameter schema. The Registry turns the registered skills into an
// immutable Catalog, and the Dispatcher executes model-issued tool calls
// against that catalog.
package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// BuiltinNamespace is the namespace of the skills shipped with the service.
const BuiltinNamespace = "doublesecretagency/sidekick/skills"

// Skill is a group of functions exposed to the model.
type Skill interface {
	// Namespace identifies the package the skill belongs to.
	Namespace() string
	// Name is the short class name used in encoded tool names.
	Name() string
	Functions() []Function
}

// Restricter is implemented by skills that hide some of their functions
// depending on the environment.
type Restricter interface {
	RestrictedFunctions(env Env) []string
}

// Env describes the host installation at the time the catalog is built.
type Env struct {
	HostVersion       string `json:"host_version"`
	AllowAdminChanges bool   `json:"allow_admin_changes"`
	ServiceVersion    string `json:"service_version"`
}

// Function is one declared tool function. Use Define to create one.
type Function struct {
	Name           string
	Summary        string
	Description    string
	Mutating       bool
	MinHostVersion string

	argsType reflect.Type
	invoke   func(ctx context.Context, args json.RawMessage) (domain.ToolInvocationResult, error)
}

// Option configures a Function.
type Option func(*Function)

// Mutating marks a function that changes the host installation.
func Mutating() Option {
	return func(f *Function) { f.Mutating = true }
}

// RequiresHost hides a function on host versions older than version.
func RequiresHost(version string) Option {
	return func(f *Function) { f.MinHostVersion = version }
}

// Define declares a function whose arguments decode into A. The fields of A,
// in declaration order, are the function's parameters; their descriptions
// come from the jsonschema_description tag.
func Define[A any](name, summary, description string, handler func(ctx context.Context, args A) domain.ToolInvocationResult, opts ...Option) Function {
	f := Function{
		Name:        name,
		Summary:     summary,
		Description: description,
		argsType:    reflect.TypeOf((*A)(nil)).Elem(),
		invoke: func(ctx context.Context, raw json.RawMessage) (domain.ToolInvocationResult, error) {
			var args A
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&args); err != nil {
				return domain.ToolInvocationResult{}, err
			}
			return handler(ctx, args), nil
		},
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// NoArgs is the argument type of functions without parameters.
type NoArgs struct{}

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// schema reflects the closed parameter schema of f: every property is
// required and no other property is allowed.
func (f Function) schema() *jsonschema.Schema {
	s := reflector.ReflectFromType(f.argsType)
	s.Version = ""
	s.ID = ""
	s.Type = "object"
	s.AdditionalProperties = jsonschema.FalseSchema
	s.Required = []string{}
	if s.Properties == nil {
		s.Properties = jsonschema.NewProperties()
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		s.Required = append(s.Required, pair.Key)
	}
	return s
}

// parameters lists the declared parameters of f in declaration order.
func parameters(s *jsonschema.Schema) []domain.ToolParameter {
	params := []domain.ToolParameter{}
	if s.Properties == nil {
		return params
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		params = append(params, domain.ToolParameter{
			Name:        pair.Key,
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
		})
	}
	return params
}
