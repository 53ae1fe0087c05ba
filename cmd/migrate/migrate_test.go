package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMigrationID(t *testing.T) {
	assert.Equal(t, "001_initial_schema", extractMigrationID("001_initial_schema.sql"))
	assert.Equal(t, "20260101120000_add_index", extractMigrationID("20260101120000_add_index.sql"))
	assert.Equal(t, "notsql", extractMigrationID("notsql"))
}

func TestMigrationFilesOrdered(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	// Glob returns sorted paths; prefixed ids must preserve intended order.
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
}
