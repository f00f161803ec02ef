package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/coreb?sslmode=disable", MigrateURL("postgres://u:p@localhost:5432/coreb?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/coreb", MigrateURL("postgresql://localhost/coreb"))
	require.Equal(t, "pgx5://localhost/coreb", MigrateURL("pgx5://localhost/coreb"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	up, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	down, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, up)
	require.Len(t, down, len(up))
}
