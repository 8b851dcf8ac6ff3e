// Package config loads Hexis configuration from two layers, applied in
// precedence order (later layers win): the DB-backed Config key/value map
// (§3 of the spec) and an optional YAML overlay file for local/dev use.
// Process environment variables are not a layer of this map; callers read
// them directly. Most keys are plain JSON values addressed
// by dotted key (e.g. "heartbeat.heartbeat_interval_minutes"); ToolsConfig
// lives under the single key "tools" and is unmarshaled into a typed struct.
package config

import (
	"context"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

const (
	KindMissingKey   = "config.missing_key"
	KindInvalidValue = "config.invalid_value"
)

// Store is the narrow persistence interface config needs from the state
// store adapter: a flat key -> JSON value map.
type Store interface {
	GetConfig(ctx context.Context, key string) (json.RawMessage, bool, error)
	SetConfig(ctx context.Context, key string, value json.RawMessage) error
	AllConfig(ctx context.Context) (map[string]json.RawMessage, error)
}

// Loader merges the DB-backed config map with an optional YAML overlay file.
// Environment variables are consulted by individual callers per §6 of the
// spec (they are contractual names, not part of this generic key/value map).
type Loader struct {
	store   Store
	overlay map[string]json.RawMessage
}

// NewLoader constructs a Loader. overlayPath may be empty, in which case no
// YAML overlay is applied.
func NewLoader(store Store, overlayPath string) (*Loader, error) {
	l := &Loader{store: store}
	if overlayPath != "" {
		data, err := os.ReadFile(overlayPath)
		if err != nil {
			if os.IsNotExist(err) {
				return l, nil
			}
			return nil, xerrors.Wrap(KindInvalidValue, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, xerrors.Wrap(KindInvalidValue, err)
		}
		l.overlay = make(map[string]json.RawMessage, len(raw))
		for k, v := range raw {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, xerrors.Wrap(KindInvalidValue, err)
			}
			l.overlay[k] = b
		}
	}
	return l, nil
}

// All returns the merged configuration map: DB values overlaid by the YAML
// file values (YAML wins on conflicting keys, matching "local override").
func (l *Loader) All(ctx context.Context) (map[string]json.RawMessage, error) {
	base, err := l.store.AllConfig(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(base)+len(l.overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range l.overlay {
		merged[k] = v
	}
	return merged, nil
}

// Get fetches a single key, applying the overlay if present, and unmarshals
// it into out. Returns a KindMissingKey error if neither layer defines it.
func (l *Loader) Get(ctx context.Context, key string, out any) error {
	if v, ok := l.overlay[key]; ok {
		return unmarshalInto(v, out)
	}
	v, ok, err := l.store.GetConfig(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.Newf(KindMissingKey, "config key %q not set", key)
	}
	return unmarshalInto(v, out)
}

// GetOr fetches a key like Get but returns fallback (no error) when Get
// fails for any reason, including the key being missing in both layers.
func GetOr[T any](ctx context.Context, l *Loader, key string, fallback T) T {
	var out T
	if err := l.Get(ctx, key, &out); err != nil {
		return fallback
	}
	return out
}

// Set writes a key directly to the DB-backed layer. Overlay values are never
// mutated by Set; they represent read-only local overrides.
func (l *Loader) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return xerrors.Wrap(KindInvalidValue, err)
	}
	return l.store.SetConfig(ctx, key, b)
}

func unmarshalInto(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return xerrors.Wrap(KindInvalidValue, err)
	}
	return nil
}
