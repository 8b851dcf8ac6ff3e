package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// defaultExecutionTimeout is the configurable ceiling on a single handler's
// Execute call (§4.D's "120-second configurable timeout").
const defaultExecutionTimeout = 120 * time.Second

// Stats accumulates counters across every call the registry has executed,
// keyed for §4.C's "record into ExecutionStats (counts, durations,
// errors-by-kind, calls-by-tool)".
type Stats struct {
	mu           sync.Mutex
	CallsByTool  map[string]int
	ErrorsByKind map[string]int
	TotalCalls   int
	TotalErrors  int
	TotalTime    time.Duration
}

func newStats() *Stats {
	return &Stats{CallsByTool: map[string]int{}, ErrorsByKind: map[string]int{}}
}

func (s *Stats) record(name string, dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalCalls++
	s.CallsByTool[name]++
	s.TotalTime += dur
	if err != nil {
		s.TotalErrors++
		s.ErrorsByKind[xerrors.KindOf(err)]++
	}
}

// Snapshot returns a point-in-time copy safe to read without further locking.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{
		CallsByTool:  make(map[string]int, len(s.CallsByTool)),
		ErrorsByKind: make(map[string]int, len(s.ErrorsByKind)),
		TotalCalls:   s.TotalCalls,
		TotalErrors:  s.TotalErrors,
		TotalTime:    s.TotalTime,
	}
	for k, v := range s.CallsByTool {
		out.CallsByTool[k] = v
	}
	for k, v := range s.ErrorsByKind {
		out.ErrorsByKind[k] = v
	}
	return out
}

type registeredTool struct {
	handler Handler
	spec    Spec
	schema  *jsonschema.Schema
}

// Registry is the name -> handler catalogue described in §4.C: a builder
// fills it at start-up (static handlers plus MCP-discovered wrappers), and
// Execute/BatchExecute run every call behind the shared policy pipeline.
type Registry struct {
	cache      *configCache
	boundaries BoundariesFunc
	timeout    time.Duration
	stats      *Stats

	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// NewRegistry constructs an empty Registry. Register handlers with Register
// before serving any Execute calls.
func NewRegistry(loader *config.Loader, boundaries BoundariesFunc) *Registry {
	return &Registry{
		cache:      newConfigCache(loader, 60*time.Second),
		boundaries: boundaries,
		timeout:    defaultExecutionTimeout,
		stats:      newStats(),
		tools:      make(map[string]*registeredTool),
	}
}

// WithRedisCache switches the ToolsConfig cache to a Redis-backed store
// shared across processes, per tools.cache_backend=redis.
func (r *Registry) WithRedisCache(client *redis.Client, key string) *Registry {
	r.cache = r.cache.withRedis(client, key)
	return r
}

// WithTimeout overrides the default per-call execution timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds (or, with a warning, overwrites) a handler under its own
// Spec().Name. parameters schema is compiled once up front so Execute never
// pays compilation cost per call.
func (r *Registry) Register(h Handler, log func(msg string, kv ...any)) error {
	spec := h.Spec()
	name := sanitizedName(spec.Name)

	var schema *jsonschema.Schema
	if len(spec.Parameters) > 0 {
		var doc any
		if err := json.Unmarshal(spec.Parameters, &doc); err != nil {
			return xerrors.Wrap(KindInvalidParams, err)
		}
		c := jsonschema.NewCompiler()
		resourceName := fmt.Sprintf("%s.json", name)
		if err := c.AddResource(resourceName, doc); err != nil {
			return xerrors.Wrap(KindInvalidParams, err)
		}
		compiled, err := c.Compile(resourceName)
		if err != nil {
			return xerrors.Wrap(KindInvalidParams, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists && log != nil {
		log("tool registration overwritten", "tool", name)
	}
	r.tools[name] = &registeredTool{handler: h, spec: spec, schema: schema}
	return nil
}

// Specs returns the admitted subset of the catalogue for a context: every
// tool passing the enabled+context+boundary portion of the policy pipeline
// (§4.C: "tool admission ... resolves to the subset of the catalogue that
// passes step 3 enabled+context+boundary"), for exposure to the LLM or MCP.
func (r *Registry) Specs(ctx context.Context, invocationCtx Context) ([]Spec, error) {
	cfg, err := r.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	boundaries, err := r.resolveBoundaries(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		if err := checkEnabled(t.spec, invocationCtx, cfg); err != nil {
			continue
		}
		if !t.spec.AllowsContext(invocationCtx) {
			continue
		}
		if err := checkBoundary(t.spec, boundaries); err != nil {
			continue
		}
		out = append(out, t.spec)
	}
	return out, nil
}

func (r *Registry) resolveBoundaries(ctx context.Context) ([]Boundary, error) {
	if r.boundaries == nil {
		return nil, nil
	}
	return r.boundaries(ctx)
}

// Execute runs the 6-step protocol of §4.C for a single tool call.
func (r *Registry) Execute(ec *ExecContext, name string, args map[string]any) (Result, error) {
	start := time.Now()
	result, err := r.execute(ec, name, args)
	r.stats.record(sanitizedName(name), time.Since(start), err)
	return result, err
}

func (r *Registry) execute(ec *ExecContext, name string, args map[string]any) (Result, error) {
	key := sanitizedName(name)

	r.mu.RLock()
	t, ok := r.tools[key]
	r.mu.RUnlock()
	if !ok {
		return Result{}, xerrors.Newf(KindUnknownTool, "no tool registered with name %q", name)
	}

	cfg, err := r.cache.Get(ec.Go, false)
	if err != nil {
		return Result{}, err
	}
	boundaries, err := r.resolveBoundaries(ec.Go)
	if err != nil {
		return Result{}, err
	}
	if err := checkPolicy(t.spec, ec, cfg, boundaries); err != nil {
		return Result{}, err
	}

	if t.schema != nil {
		if err := t.schema.Validate(toValidatable(args)); err != nil {
			return Result{}, xerrors.Wrap(KindInvalidParams, err)
		}
	}

	cost := resolvedCost(t.spec, cfg)
	result, err := r.runWithTimeout(ec, t.handler, args)
	if err != nil {
		return Result{}, err
	}
	if result.EnergySpent == 0 {
		result.EnergySpent = cost
	}
	if ec.Context == ContextHeartbeat && ec.EnergyAvailable != nil {
		ec.EnergyAvailable.Spend(result.EnergySpent)
	}
	return result, nil
}

func (r *Registry) runWithTimeout(ec *ExecContext, h Handler, args map[string]any) (Result, error) {
	timeout := r.timeout
	goCtx, cancel := context.WithTimeout(ec.Go, timeout)
	defer cancel()

	callCtx := *ec
	callCtx.Go = goCtx

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.Execute(&callCtx, args)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if xerrors.KindOf(o.err) != "" {
				// Handler already returned a typed tool error; pass it
				// through rather than relabeling it execution_failed.
				return Result{}, o.err
			}
			return Result{}, xerrors.Wrap(KindExecutionFailed, o.err)
		}
		return o.result, nil
	case <-goCtx.Done():
		if goCtx.Err() == context.DeadlineExceeded {
			return Result{}, xerrors.Newf(KindTimeout, "tool %q exceeded %s", h.Spec().Name, timeout)
		}
		return Result{}, xerrors.Newf(KindCancelled, "tool %q cancelled", h.Spec().Name)
	}
}

// ExecutionStats returns the registry's accumulated execution counters.
func (r *Registry) ExecutionStats() Stats {
	return r.stats.Snapshot()
}

func toValidatable(args map[string]any) any {
	// jsonschema validates against the generic any produced by
	// encoding/json (map[string]any / []any / float64 / string / bool /
	// nil); round-trip through JSON so numeric types match what a real
	// decoded payload would have.
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return args
	}
	return v
}
