package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// ThinkFunc mirrors heartbeat.ThinkFunc's exact shape so the termination
// review can reuse whatever Binding the worker already has wired, without
// this package importing internal/llm.
type ThinkFunc func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error)

// Store is the narrow slice of store.Adapter the delete_instance flow needs,
// declared locally per this tree's wiring convention.
type Store interface {
	IsAgentConfigured(ctx context.Context) (bool, error)
	IsAgentTerminated(ctx context.Context) (bool, error)
	GatherTurnContext(ctx context.Context) (json.RawMessage, error)
	TerminateAgent(ctx context.Context, lastWill string, farewells []string, options map[string]any) error
	RecordTerminationRefusal(ctx context.Context, reasoning string) error
}

// StoreOpener constructs a Store (and releases it via the returned closer)
// for a freshly dialed pool against one instance's substrate. Production
// wiring supplies one backed by pgxpool.New + store.New; tests supply a fake.
type StoreOpener func(ctx context.Context, dsn string) (Store, func(), error)

// Action is the §4.D action shape, reused here only for
// termination_confirm's alternative_actions field.
type Action struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// TerminationReview is the termination_confirm think-call output (§4.D),
// reused by delete_instance for its out-of-heartbeat termination review.
type TerminationReview struct {
	Confirm            bool     `json:"confirm"`
	Reasoning          string   `json:"reasoning"`
	LastWill           string   `json:"last_will"`
	Farewells          []string `json:"farewells"`
	AlternativeActions []Action `json:"alternative_actions"`
}

func fallbackRefusalReview(objection string) TerminationReview {
	return TerminationReview{
		Confirm:   false,
		Reasoning: objection,
		AlternativeActions: []Action{
			{Action: "reach_out_user", Params: map[string]any{}},
		},
	}
}

// Lifecycle implements create_instance/import_instance/clone_instance/
// delete_instance over a Registry, a SubstrateAdmin, and a StoreOpener.
type Lifecycle struct {
	Registry *Registry
	Admin    SubstrateAdmin
	OpenStore StoreOpener
	// TerminationRecordsDir overrides ~/.hexis/termination_records for tests.
	TerminationRecordsDir string
}

// NewLifecycle wires a Lifecycle against the real PGAdmin and a StoreOpener
// backed by pgxpool + store.New, for production use.
func NewLifecycle(registry *Registry, opener StoreOpener) *Lifecycle {
	return &Lifecycle{Registry: registry, Admin: PGAdmin{}, OpenStore: opener}
}

func adminDSN(inst Instance) string {
	password := os.Getenv(inst.PasswordEnv)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/postgres", inst.User, password, inst.Host, inst.Port)
}

// CreateInstance allocates a fresh substrate, applies the schema, and
// registers the mapping, per §4.G.
func (l *Lifecycle) CreateInstance(ctx context.Context, name string, inst Instance) (Instance, error) {
	if err := validateName(name); err != nil {
		return Instance{}, err
	}
	if exists, err := l.Registry.Exists(name); err != nil {
		return Instance{}, err
	} else if exists {
		return Instance{}, xerrors.Newf(KindInstanceExists, "instance %q already registered", name)
	}

	admin := adminDSN(inst)
	already, err := l.Admin.DatabaseExists(ctx, admin, inst.Database)
	if err != nil {
		return Instance{}, err
	}
	if already {
		return Instance{}, xerrors.Newf(KindInstanceExists, "substrate %q already exists", inst.Database)
	}

	if err := l.Admin.CreateDatabase(ctx, admin, inst.Database); err != nil {
		return Instance{}, err
	}
	if err := l.Admin.ApplySchema(ctx, inst.DSN()); err != nil {
		_ = l.Admin.DropDatabase(ctx, admin, inst.Database)
		return Instance{}, err
	}

	inst.CreatedAt = time.Now().UTC()
	if err := l.Registry.Add(name, inst); err != nil {
		_ = l.Admin.DropDatabase(ctx, admin, inst.Database)
		return Instance{}, err
	}
	return inst, nil
}

// ImportInstance registers an existing, externally reachable substrate,
// failing if it cannot be pinged.
func (l *Lifecycle) ImportInstance(ctx context.Context, name string, inst Instance) (Instance, error) {
	if err := l.Admin.Ping(ctx, inst.DSN()); err != nil {
		return Instance{}, fmt.Errorf("instance: import %q: substrate unreachable: %w", name, err)
	}
	inst.CreatedAt = time.Now().UTC()
	if err := l.Registry.Add(name, inst); err != nil {
		return Instance{}, err
	}
	return inst, nil
}

// CloneInstance creates an empty dst substrate and streams a dump of src
// into it; on any failure dst is dropped and unregistered.
func (l *Lifecycle) CloneInstance(ctx context.Context, src, dst string, dstInst Instance) (Instance, error) {
	srcInst, err := l.Registry.Get(src)
	if err != nil {
		return Instance{}, err
	}

	created, err := l.CreateInstance(ctx, dst, dstInst)
	if err != nil {
		return Instance{}, err
	}

	if err := l.cloneData(ctx, srcInst, created); err != nil {
		_ = l.Registry.Remove(dst)
		_ = l.Admin.DropDatabase(ctx, adminDSN(created), created.Database)
		return Instance{}, fmt.Errorf("instance: clone %q into %q: %w", src, dst, err)
	}
	return created, nil
}

func (l *Lifecycle) cloneData(ctx context.Context, src, dst Instance) error {
	dump, err := l.Admin.Dump(ctx, src.DSN())
	if err != nil {
		return err
	}
	defer dump.Close()
	return l.Admin.Restore(ctx, dst.DSN(), dump)
}

// AgentDeletionRefused is raised when a confirmed-required termination
// review declined and force was not set.
type AgentDeletionRefused struct {
	Review TerminationReview
}

func (e *AgentDeletionRefused) Error() string {
	return fmt.Sprintf("instance: deletion refused: %s", e.Review.Reasoning)
}

// DeleteInstanceParams carries the optional force/reason overrides for
// delete_instance.
type DeleteInstanceParams struct {
	Force             bool
	Reason            string
	RequirePermission bool
}

// DeleteInstance runs the §4.G termination review (unless the agent is
// already terminated, unconfigured, or RequirePermission is false), persists
// the review, and drops the substrate.
func (l *Lifecycle) DeleteInstance(ctx context.Context, name string, params DeleteInstanceParams, think ThinkFunc) error {
	inst, err := l.Registry.Get(name)
	if err != nil {
		return err
	}

	skipReview := !params.RequirePermission
	var review TerminationReview

	if !skipReview {
		st, closeStore, err := l.OpenStore(ctx, inst.DSN())
		if err != nil {
			return fmt.Errorf("instance: open substrate %q: %w", name, err)
		}
		defer closeStore()

		terminated, err := st.IsAgentTerminated(ctx)
		if err != nil {
			return err
		}
		configured, err := st.IsAgentConfigured(ctx)
		if err != nil {
			return err
		}
		if terminated || !configured {
			skipReview = true
		} else {
			review, err = l.runTerminationReview(ctx, st, name, params, think)
			if err != nil {
				return err
			}
			if err := l.persistReview(name, review); err != nil {
				return err
			}
			if review.Confirm {
				if err := st.TerminateAgent(ctx, review.LastWill, review.Farewells, map[string]any{}); err != nil {
					return err
				}
			} else {
				if err := st.RecordTerminationRefusal(ctx, review.Reasoning); err != nil {
					return err
				}
				if !params.Force {
					return &AgentDeletionRefused{Review: review}
				}
			}
		}
	}

	admin := adminDSN(inst)
	if err := l.Admin.DropDatabase(ctx, admin, inst.Database); err != nil {
		return err
	}
	return l.Registry.Remove(name)
}

func (l *Lifecycle) runTerminationReview(ctx context.Context, st Store, name string, params DeleteInstanceParams, think ThinkFunc) (TerminationReview, error) {
	turnContext, err := st.GatherTurnContext(ctx)
	if err != nil {
		return fallbackRefusalReview("failed to gather turn context: " + err.Error()), nil
	}

	reviewParams := map[string]any{
		"instance": name,
		"reason":   params.Reason,
		"force":    params.Force,
	}

	output, err := think(ctx, "termination_confirm", turnContext, reviewParams)
	if err != nil {
		return fallbackRefusalReview("termination review call failed: " + err.Error()), nil
	}

	var review TerminationReview
	if err := json.Unmarshal(output, &review); err != nil {
		return fallbackRefusalReview("termination review response was not parseable: " + err.Error()), nil
	}
	return review, nil
}

func (l *Lifecycle) persistReview(name string, review TerminationReview) error {
	dir := l.TerminationRecordsDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".hexis", "termination_records")
	}
	instanceDir := filepath.Join(dir, name)
	if err := os.MkdirAll(instanceDir, 0o700); err != nil {
		return err
	}

	requestedAt := time.Now().UTC()
	record := map[string]any{
		"instance":     name,
		"requested_at": requestedAt.Format(time.RFC3339),
		"review":       review,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	stamp := strings.ReplaceAll(requestedAt.Format("20060102T150405Z"), ":", "")
	path := filepath.Join(instanceDir, fmt.Sprintf("%s-%s.json", name, stamp))
	return os.WriteFile(path, data, 0o600)
}

// OpenStoreViaPool is the production StoreOpener: dial a dedicated pool
// against dsn and wrap it with newStore, closing the pool once the caller is
// done. Kept generic over newStore so this package does not import
// internal/store directly (that import lives in the wiring layer instead).
func OpenStoreViaPool(newStore func(pool *pgxpool.Pool) Store) StoreOpener {
	return func(ctx context.Context, dsn string) (Store, func(), error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("instance: dial substrate: %w", err)
		}
		return newStore(pool), func() { pool.Close() }, nil
	}
}
