// Package composition implements SystemComposition and NodeSetting
// (spec.md §3): the JVM × node-configuration identity pair that is the
// unit of scheduling across the server/client boundary, grounded on
// original_source/penchy/jobs/job.py and penchy/node.py.
package composition

import (
	"github.com/go-playground/validator/v10"

	"penchy/engine/core"
)

var validate = validator.New()

// TimeoutFactor is a scalar-or-callable-at-read-time multiplier applied to
// a JVM's own timeout (spec.md §3's "timeout_factor may be a scalar or a
// callable evaluated at read time").
type TimeoutFactor interface {
	Value() float64
}

// ScalarTimeoutFactor is a fixed multiplier.
type ScalarTimeoutFactor float64

func (s ScalarTimeoutFactor) Value() float64 { return float64(s) }

// FuncTimeoutFactor computes the multiplier freshly on every read, e.g.
// from a config value that can change between job runs.
type FuncTimeoutFactor func() float64

func (f FuncTimeoutFactor) Value() float64 { return f() }

// NodeSetting describes one worker host (spec.md §3). Identity is the host
// alone: two settings for the same host are the same node regardless of
// any other field.
type NodeSetting struct {
	Host        string `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	SSHPort     int    `json:"ssh_port" yaml:"ssh_port" validate:"required,gt=0,lt=65536"`
	Username    string `json:"username" yaml:"username" validate:"required"`
	Path        string `json:"path" yaml:"path" validate:"required"`
	Basepath    string `json:"basepath" yaml:"basepath" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Keyfile  string `json:"keyfile,omitempty" yaml:"keyfile,omitempty"`

	TimeoutFactor TimeoutFactor `json:"-" yaml:"-"`
}

// Validate runs struct-tag validation and requires at least one of
// Password/Keyfile for authentication (spec.md's opaque remote-shell
// `connect` needs one or the other).
func (n *NodeSetting) Validate() error {
	if err := validate.Struct(n); err != nil {
		return core.NewWrongInputError("invalid node setting", map[string]any{"host": n.Host, "cause": err.Error()})
	}
	if n.Password == "" && n.Keyfile == "" {
		return core.NewWrongInputError("node setting needs a password or a keyfile", map[string]any{"host": n.Host})
	}
	return nil
}

// Factor reads the current timeout factor, defaulting to 1.0 when unset.
func (n *NodeSetting) Factor() float64 {
	if n.TimeoutFactor == nil {
		return 1.0
	}
	return n.TimeoutFactor.Value()
}

// Hash returns SHA1(host), the identity spec.md §3 specifies.
func (n *NodeSetting) Hash() string {
	return core.SHA1Hex(n.Host)
}

// Equal compares identity only, per spec.md's "Identity = host".
func (n *NodeSetting) Equal(other *NodeSetting) bool {
	if other == nil {
		return false
	}
	return n.Host == other.Host
}
