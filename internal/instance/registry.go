// Package instance implements the file-backed registry of named agent
// deployments and the high-level create/import/clone/delete lifecycle that
// allocates and retires their substrates, per §4.G.
package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Instance is one named agent deployment's connection coordinates. Name is
// the registry map key and is not itself serialized inside the entry.
type Instance struct {
	Name        string    `json:"-"`
	Database    string    `json:"database"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	User        string    `json:"user"`
	PasswordEnv string    `json:"password_env"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// DSN resolves the instance's connection string, reading its password from
// the environment variable named by PasswordEnv.
func (i Instance) DSN() string {
	password := os.Getenv(i.PasswordEnv)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", i.User, password, i.Host, i.Port, i.Database)
}

type registryFile struct {
	Version   int                 `json:"version"`
	Current   *string             `json:"current"`
	Instances map[string]Instance `json:"instances"`
}

// Registry is the ~/.hexis/instances.json mapping of name -> Instance plus
// the single "current" selection. Every mutating call takes an exclusive
// file lock for the duration of its read-modify-write so that concurrent CLI
// invocations (e.g. a create racing a delete) serialize instead of
// corrupting the file.
type Registry struct {
	path     string
	lockPath string
}

// NewRegistry opens the registry backed by the JSON file at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path, lockPath: path + ".lock"}
}

// DefaultPath returns ~/.hexis/instances.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hexis", "instances.json"), nil
}

func (r *Registry) read() (registryFile, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return registryFile{Version: 1, Instances: map[string]Instance{}}, nil
	}
	if err != nil {
		return registryFile{}, err
	}
	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return registryFile{}, err
	}
	if f.Instances == nil {
		f.Instances = map[string]Instance{}
	}
	return f, nil
}

func (r *Registry) write(f registryFile) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o600)
}

// withLock runs fn holding an exclusive lock on the registry file, writing
// back the (possibly mutated) registryFile whenever fn returns dirty=true.
func (r *Registry) withLock(fn func(f *registryFile) (dirty bool, err error)) error {
	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o700); err != nil {
		return err
	}
	fl := flock.New(r.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("instance: lock registry: %w", err)
	}
	defer fl.Unlock()

	f, err := r.read()
	if err != nil {
		return err
	}
	dirty, err := fn(&f)
	if err != nil {
		return err
	}
	if dirty {
		return r.write(f)
	}
	return nil
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return xerrors.Newf(KindInvalidInstanceName, "invalid instance name %q", name)
	}
	return nil
}

// Add registers a new instance entry, failing with KindInstanceExists if the
// name is already taken.
func (r *Registry) Add(name string, inst Instance) error {
	if err := validateName(name); err != nil {
		return err
	}
	return r.withLock(func(f *registryFile) (bool, error) {
		if _, ok := f.Instances[name]; ok {
			return false, xerrors.Newf(KindInstanceExists, "instance %q already registered", name)
		}
		inst.Name = name
		f.Instances[name] = inst
		return true, nil
	})
}

// Remove deletes the name->instance mapping, clearing Current if it pointed
// at the removed instance.
func (r *Registry) Remove(name string) error {
	return r.withLock(func(f *registryFile) (bool, error) {
		if _, ok := f.Instances[name]; !ok {
			return false, xerrors.Newf(KindInstanceNotFound, "instance %q not registered", name)
		}
		delete(f.Instances, name)
		if f.Current != nil && *f.Current == name {
			f.Current = nil
		}
		return true, nil
	})
}

// Update replaces an existing instance's entry in place.
func (r *Registry) Update(name string, inst Instance) error {
	return r.withLock(func(f *registryFile) (bool, error) {
		if _, ok := f.Instances[name]; !ok {
			return false, xerrors.Newf(KindInstanceNotFound, "instance %q not registered", name)
		}
		inst.Name = name
		f.Instances[name] = inst
		return true, nil
	})
}

// Get returns one instance by name.
func (r *Registry) Get(name string) (Instance, error) {
	f, err := r.read()
	if err != nil {
		return Instance{}, err
	}
	inst, ok := f.Instances[name]
	if !ok {
		return Instance{}, xerrors.Newf(KindInstanceNotFound, "instance %q not registered", name)
	}
	inst.Name = name
	return inst, nil
}

// ListAll returns every registered instance, sorted by name for a stable
// CLI listing.
func (r *Registry) ListAll() ([]Instance, error) {
	f, err := r.read()
	if err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(f.Instances))
	for name, inst := range f.Instances {
		inst.Name = name
		out = append(out, inst)
	}
	sortInstances(out)
	return out, nil
}

func sortInstances(in []Instance) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && in[j].Name < in[j-1].Name; j-- {
			in[j], in[j-1] = in[j-1], in[j]
		}
	}
}

// GetCurrent returns the instance selected as current, or
// KindInstanceNotFound if none is selected.
func (r *Registry) GetCurrent() (Instance, error) {
	f, err := r.read()
	if err != nil {
		return Instance{}, err
	}
	if f.Current == nil {
		return Instance{}, xerrors.New(KindInstanceNotFound, "no current instance selected")
	}
	inst, ok := f.Instances[*f.Current]
	if !ok {
		return Instance{}, xerrors.Newf(KindInstanceNotFound, "current instance %q not registered", *f.Current)
	}
	inst.Name = *f.Current
	return inst, nil
}

// SetCurrent selects name as the current instance.
func (r *Registry) SetCurrent(name string) error {
	return r.withLock(func(f *registryFile) (bool, error) {
		if _, ok := f.Instances[name]; !ok {
			return false, xerrors.Newf(KindInstanceNotFound, "instance %q not registered", name)
		}
		f.Current = &name
		return true, nil
	})
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) (bool, error) {
	f, err := r.read()
	if err != nil {
		return false, err
	}
	_, ok := f.Instances[name]
	return ok, nil
}

// DSNFor resolves the connection string for a registered instance.
func (r *Registry) DSNFor(name string) (string, error) {
	inst, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return inst.DSN(), nil
}

// ResolveCurrent returns the instance the control plane should act against:
// HEXIS_INSTANCE when set (§6), else the registry's current selection.
func (r *Registry) ResolveCurrent() (Instance, error) {
	if name := os.Getenv("HEXIS_INSTANCE"); name != "" {
		return r.Get(name)
	}
	return r.GetCurrent()
}
