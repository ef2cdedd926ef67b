package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQL(t *testing.T) {
	stmts := splitSQL("-- header\nCREATE TABLE a (id int);\n\n  -- note\nCREATE INDEX i ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestExtractTables_Migration(t *testing.T) {
	tables, err := extractTables("../../migrations/0001_init.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"ubicaciones"}, tables)
}
