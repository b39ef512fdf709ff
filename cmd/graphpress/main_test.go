package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "print-schema")

	out.Reset()
	require.NoError(t, run([]string{"help", "serve"}, &out))
	assert.Contains(t, out.String(), "-server.addr")

	assert.EqualError(t, run([]string{"help", "nope"}, &out), `unknown help topic "nope"`)
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.EqualError(t, run(nil, &out), "missing command")
	assert.EqualError(t, run([]string{"compile"}, &out), `unknown command "compile"`)
}

func TestPrintSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"print-schema"}, &out))
	assert.Contains(t, out.String(), "type Query")
	assert.Contains(t, out.String(), "createToken")

	file := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, run([]string{"print-schema", "-out", file}, &out))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type Mutation")
}

func TestServe_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	var out bytes.Buffer
	assert.EqualError(t, run([]string{"serve"}, &out), "JWT_SECRET is required")
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	var out bytes.Buffer
	assert.EqualError(t, run([]string{"migrate"}, &out), "database URL is required")
}
