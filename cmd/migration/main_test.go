package main

import (
	"fmt"
	"strings"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	source := &migrate.FileMigrationSource{Dir: "migrations"}

	migrations, err := source.FindMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, migration := range migrations {
		t.Run(migration.Id, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(migration.Id, fmt.Sprintf("%04d_", i+1)), "migrations are numbered in order")
			assert.NotEmpty(t, migration.Up)
			assert.NotEmpty(t, migration.Down)

			for _, statement := range migration.Up {
				assert.NotContains(t, strings.ToUpper(statement), "CREATE EXTENSION",
					"ids are generated by the application")
			}
		})
	}
}
