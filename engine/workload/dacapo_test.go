package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDacapo(t *testing.T) {
	t.Run("Should reject an unknown benchmark", func(t *testing.T) {
		_, err := NewDacapo("", "not-a-benchmark", 1, "")
		require.Error(t, err)
	})

	t.Run("Should default iterations to 1 when given less than 1", func(t *testing.T) {
		d, err := NewDacapo("", "fop", 0, "")
		require.NoError(t, err)
		assert.Contains(t, d.Arguments(), "1")
	})

	t.Run("Should default its name to the benchmark name", func(t *testing.T) {
		d, err := NewDacapo("", "fop", 1, "")
		require.NoError(t, err)
		assert.Equal(t, "fop", d.Name())
	})
}

func TestDacapo_Arguments(t *testing.T) {
	t.Run("Should assemble Harness, -n, iterations, extra args, benchmark", func(t *testing.T) {
		d, err := NewDacapo("fop-run", "fop", 3, "-s small")
		require.NoError(t, err)
		assert.Equal(t, []string{"Harness", "-n", "3", "-s", "small", "fop"}, d.Arguments())
	})

	t.Run("Should declare the shared scalabench-suite dependency", func(t *testing.T) {
		d, err := NewDacapo("fop-run", "fop", 1, "")
		require.NoError(t, err)
		require.Len(t, d.Dependencies(), 1)
		assert.Equal(t, "org.scalabench.benchmarks:scala-benchmark-suite:0.1.0-20110908.085753-2", d.Dependencies()[0].Key())
	})
}

func TestDacapo_InformationArguments(t *testing.T) {
	t.Run("Should assemble Harness, -i, benchmark", func(t *testing.T) {
		d, err := NewDacapo("fop-run", "fop", 1, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"Harness", "-i", "fop"}, d.InformationArguments())
	})
}

func TestNewScalaBench(t *testing.T) {
	t.Run("Should accept a DaCapo benchmark name", func(t *testing.T) {
		_, err := NewScalaBench("", "fop", 1, "")
		require.NoError(t, err)
	})

	t.Run("Should accept a Scalabench-only benchmark name", func(t *testing.T) {
		_, err := NewScalaBench("", "kiama", 1, "")
		require.NoError(t, err)
	})

	t.Run("Should reject a benchmark unknown to either suite", func(t *testing.T) {
		_, err := NewScalaBench("", "not-a-benchmark", 1, "")
		require.Error(t, err)
	})
}

func TestDacapo_Fingerprint(t *testing.T) {
	t.Run("Should differ between two different benchmarks", func(t *testing.T) {
		a, _ := NewDacapo("", "fop", 1, "")
		b, _ := NewDacapo("", "avrora", 1, "")
		assert.NotEqual(t, a.FingerprintComponent(), b.FingerprintComponent())
	})
}
