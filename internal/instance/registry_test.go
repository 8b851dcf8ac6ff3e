package instance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), "instances.json"))
}

func TestRegistryAddGetListAll(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Add("alpha", Instance{Database: "alpha_db", Host: "localhost", Port: 5432, User: "hexis", CreatedAt: time.Now()}))
	require.NoError(t, r.Add("beta", Instance{Database: "beta_db", Host: "localhost", Port: 5432, User: "hexis", CreatedAt: time.Now()}))

	got, err := r.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "alpha_db", got.Database)
	require.Equal(t, "alpha", got.Name)

	all, err := r.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "alpha", all[0].Name)
	require.Equal(t, "beta", all[1].Name)
}

func TestRegistryAddDuplicateFails(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Add("alpha", Instance{Database: "alpha_db"}))
	err := r.Add("alpha", Instance{Database: "other_db"})
	require.Error(t, err)
	var xe *xerrors.Error
	require.ErrorAs(t, err, &xe)
	require.Equal(t, KindInstanceExists, xe.Kind)
}

func TestRegistryInvalidNameRejected(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Add("9bad", Instance{})
	require.Error(t, err)
	var xe *xerrors.Error
	require.ErrorAs(t, err, &xe)
	require.Equal(t, KindInvalidInstanceName, xe.Kind)
}

func TestRegistryRemoveClearsCurrent(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Add("alpha", Instance{Database: "alpha_db"}))
	require.NoError(t, r.SetCurrent("alpha"))

	cur, err := r.GetCurrent()
	require.NoError(t, err)
	require.Equal(t, "alpha", cur.Name)

	require.NoError(t, r.Remove("alpha"))
	_, err = r.GetCurrent()
	require.Error(t, err)
}

func TestRegistryRemoveMissingFails(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Remove("ghost")
	require.Error(t, err)
	var xe *xerrors.Error
	require.ErrorAs(t, err, &xe)
	require.Equal(t, KindInstanceNotFound, xe.Kind)
}

func TestRegistryResolveCurrentPrefersEnv(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Add("alpha", Instance{Database: "alpha_db"}))
	require.NoError(t, r.Add("beta", Instance{Database: "beta_db"}))
	require.NoError(t, r.SetCurrent("alpha"))

	t.Setenv("HEXIS_INSTANCE", "beta")
	got, err := r.ResolveCurrent()
	require.NoError(t, err)
	require.Equal(t, "beta", got.Name)
}

func TestRegistryExistsAndDSNFor(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Add("alpha", Instance{Database: "alpha_db", Host: "db", Port: 5432, User: "hexis", PasswordEnv: "ALPHA_PW"}))

	ok, err := r.Exists("alpha")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Exists("missing")
	require.NoError(t, err)
	require.False(t, ok)

	t.Setenv("ALPHA_PW", "s3cret")
	dsn, err := r.DSNFor("alpha")
	require.NoError(t, err)
	require.Equal(t, "postgres://hexis:s3cret@db:5432/alpha_db", dsn)
}
