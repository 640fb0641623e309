package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: a single literal
analyses: [typeinfer]
tree:
  nodes:
    - {label: lit, i32: 7}
  root: lit
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, []string{"typeinfer"}, s.Analyses)
	require.Len(t, s.Tree.Nodes, 1)
	require.NotNil(t, s.Tree.Nodes[0].I32)
	assert.Equal(t, int32(7), *s.Tree.Nodes[0].I32)
	assert.Empty(t, s.Assertions)
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  minimalScenario + "assertion: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			doc: `
description: d
analyses: [typeinfer]
tree: {nodes: [{label: a, i32: 1}], root: a}
`,
			want: "name is required",
		},
		{
			name: "missing description",
			doc: `
name: n
analyses: [typeinfer]
tree: {nodes: [{label: a, i32: 1}], root: a}
`,
			want: "description is required",
		},
		{
			name: "no analyses",
			doc: `
name: n
description: d
tree: {nodes: [{label: a, i32: 1}], root: a}
`,
			want: "analyses list is required",
		},
		{
			name: "unknown analysis",
			doc: `
name: n
description: d
analyses: [borrowck]
tree: {nodes: [{label: a, i32: 1}], root: a}
`,
			want: `unknown analysis "borrowck"`,
		},
		{
			name: "no nodes",
			doc: `
name: n
description: d
analyses: [typeinfer]
tree: {root: a}
`,
			want: "tree.nodes is required",
		},
		{
			name: "no root",
			doc: `
name: n
description: d
analyses: [typeinfer]
tree: {nodes: [{label: a, i32: 1}]}
`,
			want: "tree.root is required",
		},
		{
			name: "two node kinds",
			doc: `
name: n
description: d
analyses: [typeinfer]
tree: {nodes: [{label: a, i32: 1, u32: 2}], root: a}
`,
			want: "exactly one node kind must be set, found 2",
		},
		{
			name: "no node kind",
			doc: `
name: n
description: d
analyses: [typeinfer]
tree: {nodes: [{label: a}], root: a}
`,
			want: "found 0",
		},
		{
			name: "missing label",
			doc: `
name: n
description: d
analyses: [typeinfer]
tree: {nodes: [{i32: 1}], root: a}
`,
			want: "label is required",
		},
		{
			name: "assertion without type",
			doc: minimalScenario + `
assertions:
  - {expr: lit}
`,
			want: "type is required",
		},
		{
			name: "unknown assertion type",
			doc: minimalScenario + `
assertions:
  - {type: well_typed}
`,
			want: `unknown assertion type "well_typed"`,
		},
		{
			name: "type_of without type_name",
			doc: minimalScenario + `
assertions:
  - {type: type_of, expr: lit}
`,
			want: "type_name is required for type_of",
		},
		{
			name: "ancestor_used without descendant",
			doc: minimalScenario + `
assertions:
  - {type: ancestor_used, ancestor: a, expr: lit}
`,
			want: "descendant is required",
		},
		{
			name: "count without count",
			doc: minimalScenario + `
assertions:
  - {type: count, relation: TypeOf}
`,
			want: "count must be set and non-negative",
		},
		{
			name: "ok with unknown analysis",
			doc: minimalScenario + `
assertions:
  - {type: ok, analysis: borrowck}
`,
			want: "analysis must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: n\n"), 0o644))
	_, err = LoadScenario(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}
