package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penchy/engine/composition"
)

func writeJobDescriptor(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const validJobYAML = `
source: dacapo.jar
invocations: 2
compositions:
  - node_host: node1.example.com
    jvm:
      path: /usr/bin/java
      options: -Xmx512m
    flow:
      - source: {name: workload, type: dacapo, with: {benchmark: fop, iterations: 3}}
        sink: {name: harness, type: dacapo_harness}
      - source: {name: harness, type: dacapo_harness}
        sink: {name: send, type: send}
server_flow:
  - source: {name: receive, type: receive}
    sink: {name: stats, type: stats}
`

func nodeSettings() map[string]*composition.NodeSetting {
	return map[string]*composition.NodeSetting{
		"node1.example.com": {
			Host:     "node1.example.com",
			SSHPort:  22,
			Username: "bench",
			Path:     "/home/bench",
			Basepath: "/home/bench/cache",
			Password: "secret",
		},
	}
}

func TestLoadJobDescriptor(t *testing.T) {
	t.Run("Should load and validate a well-formed job descriptor", func(t *testing.T) {
		path := writeJobDescriptor(t, validJobYAML)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)
		assert.Equal(t, "dacapo.jar", d.Source)
		assert.Equal(t, 2, d.Invocations)
		assert.Len(t, d.Compositions, 1)
		assert.Len(t, d.ServerFlow, 1)
	})

	t.Run("Should reject a descriptor missing a required field", func(t *testing.T) {
		path := writeJobDescriptor(t, "invocations: 1\n")
		_, err := LoadJobDescriptor(path)
		assert.Error(t, err)
	})

	t.Run("Should reject a composition with an empty flow", func(t *testing.T) {
		path := writeJobDescriptor(t, `
source: dacapo.jar
compositions:
  - node_host: node1.example.com
    jvm: {path: /usr/bin/java}
    flow: []
`)
		_, err := LoadJobDescriptor(path)
		assert.Error(t, err)
	})
}

func TestJobDescriptor_Build(t *testing.T) {
	t.Run("Should resolve a composition against its node host and wire its workload", func(t *testing.T) {
		path := writeJobDescriptor(t, validJobYAML)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)

		comps, serverFlow, err := d.Build(nodeSettings())
		require.NoError(t, err)
		require.Len(t, comps, 1)
		assert.Len(t, serverFlow, 1)

		comp := comps[0]
		assert.Equal(t, "node1.example.com", comp.NodeSetting.Host)
		assert.NotNil(t, comp.JVM.Workload())
		assert.Len(t, comp.Flow, 2)
	})

	t.Run("Should fail when a composition references an unknown node host", func(t *testing.T) {
		path := writeJobDescriptor(t, validJobYAML)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)

		_, _, err = d.Build(map[string]*composition.NodeSetting{})
		assert.Error(t, err)
	})

	t.Run("Should fail when a flow edge references an unknown element type", func(t *testing.T) {
		path := writeJobDescriptor(t, `
source: dacapo.jar
compositions:
  - node_host: node1.example.com
    jvm: {path: /usr/bin/java}
    flow:
      - source: {name: a, type: nonexistent}
        sink: {name: b, type: send}
`)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)

		_, _, err = d.Build(nodeSettings())
		assert.Error(t, err)
	})

	t.Run("Should parse a human-readable JVM timeout into seconds", func(t *testing.T) {
		path := writeJobDescriptor(t, `
source: dacapo.jar
compositions:
  - node_host: node1.example.com
    jvm:
      path: /usr/bin/java
      timeout: 2m
    flow:
      - source: {name: workload, type: dacapo, with: {benchmark: fop}}
        sink: {name: send, type: send}
`)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)

		comps, _, err := d.Build(nodeSettings())
		require.NoError(t, err)
		assert.Equal(t, 120, comps[0].JVM.Timeout)
	})

	t.Run("Should fail when the JVM timeout is not a parseable duration", func(t *testing.T) {
		path := writeJobDescriptor(t, `
source: dacapo.jar
compositions:
  - node_host: node1.example.com
    jvm:
      path: /usr/bin/java
      timeout: not-a-duration
    flow:
      - source: {name: workload, type: dacapo, with: {benchmark: fop}}
        sink: {name: send, type: send}
`)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)

		_, _, err = d.Build(nodeSettings())
		assert.Error(t, err)
	})

	t.Run("Should reuse the same element instance across edges sharing a name", func(t *testing.T) {
		path := writeJobDescriptor(t, validJobYAML)
		d, err := LoadJobDescriptor(path)
		require.NoError(t, err)

		comps, _, err := d.Build(nodeSettings())
		require.NoError(t, err)

		flow := comps[0].Flow
		require.Len(t, flow, 2)
		assert.Same(t, flow[0].Sink, flow[1].Source)
	})
}
