package tools

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"crm_assistant_backend/platform/logger"

	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

// Name is the closed set of tools the model may call.
type Name string

const (
	VerifyCustomer  Name = "verify_customer"
	AccountStatus   Name = "account_status"
	StockLookup     Name = "stock_lookup"
	PriceLookup     Name = "price_lookup"
	PurchaseHistory Name = "purchase_history"
)

// Argument names used in the catalog.
const (
	argTaxID        = "tax_id"
	argCustomerCode = "customer_code"
	argProduct      = "product"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) string

// Observer receives one event per executed tool call.
type Observer interface {
	ObserveTool(tool string, elapsed time.Duration, failed bool)
}

// Result is the outcome of one invocation.
type Result struct {
	Output string
	Failed bool
}

type catalog struct {
	Tools []catalogTool `yaml:"tools"`
}

type catalogTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  []catalogParam `yaml:"parameters"`
}

type catalogParam struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// Registry maps tool names to handlers and advertises them to the model.
type Registry struct {
	handlers     map[Name]Handler
	declarations []*genai.FunctionDeclaration
	observer     Observer
	log          *logger.Logger
}

// NewRegistry binds the service to the embedded catalog. It fails when the
// catalog and the handler set disagree.
func NewRegistry(svc *Service, log *logger.Logger) (*Registry, error) {
	handlers := map[Name]Handler{
		VerifyCustomer: func(ctx context.Context, args map[string]any) string {
			return svc.VerifyCustomer(ctx, stringArg(args, argTaxID))
		},
		AccountStatus: func(ctx context.Context, args map[string]any) string {
			return svc.AccountStatus(ctx, stringArg(args, argTaxID), stringArg(args, argCustomerCode))
		},
		StockLookup: func(ctx context.Context, args map[string]any) string {
			return svc.StockLookup(ctx, stringArg(args, argProduct))
		},
		PriceLookup: func(ctx context.Context, args map[string]any) string {
			return svc.PriceLookup(ctx, stringArg(args, argProduct))
		},
		PurchaseHistory: func(ctx context.Context, args map[string]any) string {
			return svc.PurchaseHistory(ctx, stringArg(args, argTaxID), stringArg(args, argCustomerCode))
		},
	}
	return newRegistry(catalogYAML, handlers, log)
}

func newRegistry(raw []byte, handlers map[Name]Handler, log *logger.Logger) (*Registry, error) {
	var cat catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}

	declared := make(map[Name]bool, len(cat.Tools))
	decls := make([]*genai.FunctionDeclaration, 0, len(cat.Tools))
	for _, t := range cat.Tools {
		name := Name(t.Name)
		if declared[name] {
			return nil, fmt.Errorf("tool %q declared twice", t.Name)
		}
		if _, ok := handlers[name]; !ok {
			return nil, fmt.Errorf("tool %q has no handler", t.Name)
		}
		declared[name] = true
		decls = append(decls, t.declaration())
	}
	for name := range handlers {
		if !declared[name] {
			return nil, fmt.Errorf("handler %q is missing from the catalog", name)
		}
	}

	return &Registry{handlers: handlers, declarations: decls, log: log}, nil
}

func (t catalogTool) declaration() *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(t.Parameters)),
	}
	for _, p := range t.Parameters {
		schema.Properties[p.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: strings.TrimSpace(p.Description),
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: strings.TrimSpace(t.Description),
		Parameters:  schema,
	}
}

// SetObserver installs a per-call observer, typically the metrics collector.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// Tools returns the catalog in the shape the model client expects.
func (r *Registry) Tools() []*genai.Tool {
	return []*genai.Tool{{FunctionDeclarations: r.declarations}}
}

// Names lists the registered tools in sorted order.
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Invoke runs the named tool. Unknown names and panics come back as failed
// results carrying an error string for the model; nothing propagates.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (res Result) {
	handler, ok := r.handlers[Name(name)]
	if !ok {
		return Result{Output: fmt.Sprintf("Error: Herramienta %s no encontrada.", name), Failed: true}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Output: fmt.Sprintf("Error en la ejecución de la función: %v", rec), Failed: true}
			if r.log != nil {
				r.log.Error("tool panicked", "tool", name, "panic", fmt.Sprint(rec))
			}
		}
		elapsed := time.Since(start)
		if r.log != nil {
			r.log.ToolCall(name, elapsed, res.Failed)
		}
		if r.observer != nil {
			r.observer.ObserveTool(name, elapsed, res.Failed)
		}
	}()

	return Result{Output: handler(ctx, args)}
}

// stringArg reads a model-supplied argument. Models sometimes send numeric ids
// as numbers, so those are rendered without exponent or trailing zeros.
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
