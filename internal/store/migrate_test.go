// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperlab/accountd/pkg/errutil"
)

// fakeMigrate implements migrateIface.
type fakeMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	version        uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDBErr     error
	closed         bool
}

var errClosed = errors.New("migrator is closed")

func (f *fakeMigrate) guard(err error) error {
	if f.closed {
		return errClosed
	}
	return err
}

func (f *fakeMigrate) Up() error         { return f.guard(f.upErr) }
func (f *fakeMigrate) Down() error       { return f.guard(f.downErr) }
func (f *fakeMigrate) Steps(_ int) error { return f.guard(f.stepsErr) }
func (f *fakeMigrate) Force(_ int) error { return f.guard(f.forceErr) }
func (f *fakeMigrate) Version() (uint, bool, error) {
	if f.closed {
		return 0, false, errClosed
	}
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrate) Close() (error, error) {
	f.closed = true
	return f.closeSourceErr, f.closeDBErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	for _, url := range []string{"invalid://url", "badscheme://localhost:5432/db"} {
		_, err := NewMigrator(url)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	}
}

func TestNewMigrator_PostgresqlSchemeIsRecognized(t *testing.T) {
	_, err := NewMigrator("postgresql://localhost:1/accountd?connect_timeout=1")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{
		upErr:    migrate.ErrNoChange,
		downErr:  migrate.ErrNoChange,
		stepsErr: migrate.ErrNoChange,
	}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(0))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name string
		fake *fakeMigrate
		call func(*Migrator) error
		code string
	}{
		{"up", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"negative force", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"version", &fakeMigrate{versionErr: boom}, func(m *Migrator) error {
			_, _, err := m.Version()
			return err
		}, "MIGRATION_VERSION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(&Migrator{m: tt.fake})
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	version, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, dirty)

	version, dirty, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestMigrator_Status(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeMigrate
		applied []uint
		pending []uint
	}{
		{"fresh database", &fakeMigrate{versionErr: migrate.ErrNilVersion}, nil, []uint{1, 2}},
		{"partially migrated", &fakeMigrate{version: 1}, []uint{1}, []uint{2}},
		{"latest", &fakeMigrate{version: 2}, []uint{1, 2}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.fake}
			st, err := m.Status()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, st.Applied)
			assert.Equal(t, tt.pending, st.Pending)

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
		})
	}
}

func TestMigrator_StatusCarriesOperation(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}

	_, err := m.PendingMigrations()
	errutil.AssertErrorContext(t, err, "operation", "get pending migrations")

	_, err = m.AppliedMigrations()
	errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		fake      *fakeMigrate
		component string
	}{
		{"source", &fakeMigrate{closeSourceErr: errors.New("source close failed")}, "source"},
		{"database", &fakeMigrate{closeDBErr: errors.New("db close failed")}, "database"},
		{"both", &fakeMigrate{
			closeSourceErr: errors.New("source close failed"),
			closeDBErr:     errors.New("db close failed"),
		}, "both"},
	}

	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.fake}).Close()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestMigrator_MethodsAfterCloseReturnErrors(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{}}
	require.NoError(t, m.Close())

	assert.Error(t, m.Up())
	assert.Error(t, m.Down())
	assert.Error(t, m.Steps(1))
	assert.Error(t, m.Force(1))
	_, _, err := m.Version()
	assert.Error(t, err)
	_, err = m.Status()
	assert.Error(t, err)
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version  uint
		expected string
	}{
		{1, "000001_accounts"},
		{2, "000002_reset_tokens"},
		{999, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("version_%d", tt.version), func(t *testing.T) {
			name, err := MigrationName(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestAllMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := allMigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	original := first[0]
	first[0] = 99999

	second, err := allMigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, original, second[0])
}
