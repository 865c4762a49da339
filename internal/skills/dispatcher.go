package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/observability"
)

// Dispatcher executes model-issued tool calls against a Catalog.
type Dispatcher struct {
	catalog *Catalog
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher for catalog. metrics may be nil.
func NewDispatcher(catalog *Catalog, metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{catalog: catalog, metrics: metrics, logger: logger}
}

// Catalog returns the catalog calls are resolved against.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Execute runs the tool called name with the JSON-encoded args. It never
// returns an error or panics: every failure is reported as an unsuccessful
// result.
func (d *Dispatcher) Execute(ctx context.Context, name, args string) (result domain.ToolInvocationResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("tool panicked", "tool", name, "panic", rec)
			result = domain.Fail(fmt.Sprintf("Tool %s failed: %v", name, rec))
		}
		if !result.Success && result.Message == "" {
			result.Message = fmt.Sprintf("Tool %s failed without a message.", name)
		}
		d.metrics.ToolExecuted(name, result.Success, time.Since(start).Seconds())
		d.logger.Debug("tool executed", "tool", name, "success", result.Success)
	}()

	raw := strings.TrimSpace(args)
	if raw == "" {
		raw = "{}"
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return domain.Fail(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
	}
	if _, ok := decoded.(map[string]any); !ok {
		return domain.Fail(fmt.Sprintf("Invalid arguments for %s: expected a JSON object", name))
	}

	ref, function, err := d.catalog.Resolve(name)
	if err != nil {
		return domain.Fail(fmt.Sprintf("Tool %s not found.", name))
	}
	e, ok := d.catalog.functions[name]
	if !ok {
		return domain.Fail(fmt.Sprintf("Function %s does not exist on %s.", function, ref.Class()))
	}

	if err := e.validator.Validate(decoded); err != nil {
		return domain.Fail(fmt.Sprintf("Invalid arguments for %s: %s", name, validationMessage(err)))
	}

	res, err := e.fn.invoke(ctx, json.RawMessage(raw))
	if err != nil {
		return domain.Fail(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
	}
	return res
}

// validationMessage flattens a schema validation error to one line.
func validationMessage(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}
