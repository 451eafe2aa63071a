package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validNodeSetting() *NodeSetting {
	return &NodeSetting{
		Host:     "localhost",
		SSHPort:  22,
		Username: "dummy",
		Path:     "/",
		Basepath: "/",
		Keyfile:  "/home/dummy/.ssh/id_rsa",
	}
}

func TestNodeSetting_Validate(t *testing.T) {
	t.Run("Should accept a fully configured node setting", func(t *testing.T) {
		require.NoError(t, validNodeSetting().Validate())
	})

	t.Run("Should reject a missing host", func(t *testing.T) {
		n := validNodeSetting()
		n.Host = ""
		assert.Error(t, n.Validate())
	})

	t.Run("Should reject a missing password and keyfile", func(t *testing.T) {
		n := validNodeSetting()
		n.Keyfile = ""
		assert.Error(t, n.Validate())
	})

	t.Run("Should accept a password in place of a keyfile", func(t *testing.T) {
		n := validNodeSetting()
		n.Keyfile = ""
		n.Password = "secret"
		require.NoError(t, n.Validate())
	})
}

func TestNodeSetting_Hash(t *testing.T) {
	t.Run("Should depend only on host", func(t *testing.T) {
		a := validNodeSetting()
		b := validNodeSetting()
		b.Username = "someone-else"
		assert.Equal(t, a.Hash(), b.Hash())
	})

	t.Run("Should differ for different hosts", func(t *testing.T) {
		a := validNodeSetting()
		b := validNodeSetting()
		b.Host = "otherhost"
		assert.NotEqual(t, a.Hash(), b.Hash())
	})
}

func TestNodeSetting_Equal(t *testing.T) {
	t.Run("Should compare identity (host) only", func(t *testing.T) {
		a := validNodeSetting()
		b := validNodeSetting()
		b.SSHPort = 2222
		assert.True(t, a.Equal(b))
	})

	t.Run("Should report false against nil", func(t *testing.T) {
		assert.False(t, validNodeSetting().Equal(nil))
	})
}

func TestNodeSetting_Factor(t *testing.T) {
	t.Run("Should default to 1.0 when unset", func(t *testing.T) {
		n := validNodeSetting()
		assert.InDelta(t, 1.0, n.Factor(), 0)
	})

	t.Run("Should use a scalar factor", func(t *testing.T) {
		n := validNodeSetting()
		n.TimeoutFactor = ScalarTimeoutFactor(2.5)
		assert.InDelta(t, 2.5, n.Factor(), 0)
	})

	t.Run("Should evaluate a callable factor at read time", func(t *testing.T) {
		n := validNodeSetting()
		calls := 0
		n.TimeoutFactor = FuncTimeoutFactor(func() float64 {
			calls++
			return float64(calls)
		})
		assert.InDelta(t, 1.0, n.Factor(), 0)
		assert.InDelta(t, 2.0, n.Factor(), 0)
	})
}
