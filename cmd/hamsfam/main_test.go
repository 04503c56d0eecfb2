package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

const helloDoc = `{
	"nodes": [
		{"id": "hi", "type": "message", "data": {"content": "Hi"}},
		{"id": "ask", "type": "branch", "data": {"content": "More?", "replies": [{"display": "Yes", "value": "yes"}]}}
	],
	"edges": [
		{"id": "e1", "source": "hi", "target": "ask"},
		{"id": "e2", "source": "ask", "target": "hi", "sourceHandle": "yes"}
	]
}`

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hamsfam version")
}

func TestValidateAndGraphCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.json"), []byte(helloDoc), 0o644))

	out, err := execute(t, "validate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hello (2 nodes, 2 edges)")

	out, err = execute(t, "graph", "hello", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `hi(("hi <br/> Hi"))`)
	assert.Contains(t, out, `ask -- "yes" --> hi`)
}

func TestConfigFlagRequiresFile(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
