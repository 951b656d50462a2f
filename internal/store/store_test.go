package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := os.Stat(dbPath)
	require.True(t, os.IsNotExist(err), "database file should not exist before creating store")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file should exist after creating store")
	assert.Equal(t, dbPath, s.Path())
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"rigs", "rig_parts", "settings"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q should exist after migrations", table)
	}
}

func TestNewStore_SchemaVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := New(dbPath)
	require.NoError(t, err, "New should create missing directories")

	var version int
	require.NoError(t, s.DB().QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, len(migrations), version)

	var fk int
	require.NoError(t, s.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk, "foreign keys should be enabled")

	_, err = s.DB().Exec(fmt.Sprintf(`PRAGMA user_version = %d`, len(migrations)+1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = New(dbPath)
	assert.Error(t, err, "a newer schema should be refused")
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Rigs().Create(&Rig{Name: "mannequin", Skeleton: true}))
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	rig, err := s.Rigs().GetByName("mannequin")
	require.NoError(t, err)
	assert.True(t, rig.Skeleton)
}

func TestRigRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Rigs()

	rig := &Rig{
		Name:     "mixamo",
		Skeleton: true,
		Parts: []Part{
			{Name: "LeftArm"},
			{Name: "Hips"},
			{Name: "LeftUpLeg", Rest: &[3]float64{0, -1, 0}},
		},
	}
	require.NoError(t, repo.Create(rig))
	assert.NotEmpty(t, rig.ID, "Create should assign an ID")
	assert.False(t, rig.CreatedAt.IsZero())

	got, err := repo.GetByID(rig.ID)
	require.NoError(t, err)
	assert.Equal(t, "mixamo", got.Name)
	assert.True(t, got.Skeleton)
	require.Len(t, got.Parts, 3)

	// ordered by name
	assert.Equal(t, "Hips", got.Parts[0].Name)
	assert.Equal(t, "LeftArm", got.Parts[1].Name)
	assert.Nil(t, got.Parts[1].Rest)
	require.NotNil(t, got.Parts[2].Rest)
	assert.Equal(t, [3]float64{0, -1, 0}, *got.Parts[2].Rest)

	byName, err := repo.GetByName("mixamo")
	require.NoError(t, err)
	assert.Equal(t, rig.ID, byName.ID)
}

func TestRigRepository_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Rigs()

	require.NoError(t, repo.Create(&Rig{Name: "proxy"}))
	err := repo.Create(&Rig{Name: "proxy"})
	assert.True(t, errors.Is(err, ErrDuplicateName), "got %v", err)
}

func TestRigRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Rigs()

	_, err := repo.GetByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Update(&Rig{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Delete("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRigRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Rigs()

	rigs, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, rigs)

	require.NoError(t, repo.Create(&Rig{Name: "a", Parts: []Part{{Name: "joint_0"}}}))
	require.NoError(t, repo.Create(&Rig{Name: "b", Skeleton: true}))

	rigs, err = repo.List()
	require.NoError(t, err)
	require.Len(t, rigs, 2)
	for _, r := range rigs {
		assert.Nil(t, r.Parts, "List should not load parts")
	}
}

func TestRigRepository_UpdateReplacesParts(t *testing.T) {
	s := newTestStore(t)
	repo := s.Rigs()

	rig := &Rig{Name: "rig", Parts: []Part{{Name: "old"}}}
	require.NoError(t, repo.Create(rig))

	rig.Name = "renamed"
	rig.Skeleton = true
	rig.Parts = []Part{{Name: "Spine"}, {Name: "Neck"}}
	require.NoError(t, repo.Update(rig))

	got, err := repo.GetByID(rig.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.True(t, got.Skeleton)
	require.Len(t, got.Parts, 2)
	assert.Equal(t, "Neck", got.Parts[0].Name)
	assert.Equal(t, "Spine", got.Parts[1].Name)
}

func TestRigRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	repo := s.Rigs()

	rig := &Rig{Name: "rig", Parts: []Part{{Name: "a"}, {Name: "b"}}}
	require.NoError(t, repo.Create(rig))
	require.NoError(t, repo.Delete(rig.ID))

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM rig_parts WHERE rig_id = ?`, rig.ID).Scan(&n))
	assert.Zero(t, n, "parts should be removed with the rig")
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	_, err := settings.Get(SettingActiveRig)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, settings.Set(SettingActiveRig, "rig-1"))
	require.NoError(t, settings.Set(SettingActiveRig, "rig-2"))

	v, err := settings.Get(SettingActiveRig)
	require.NoError(t, err)
	assert.Equal(t, "rig-2", v)

	require.NoError(t, settings.Delete(SettingActiveRig))
	require.NoError(t, settings.Delete(SettingActiveRig))
	_, err = settings.Get(SettingActiveRig)
	assert.ErrorIs(t, err, ErrNotFound)
}
