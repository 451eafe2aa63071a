package composition

import (
	"penchy/engine/core"
	"penchy/engine/jvm"
	"penchy/engine/pipeline"
)

// SystemComposition is the unit of scheduling spec.md §3 and §4.4 describe:
// one JVM paired with one NodeSetting and the flattened client-side flow
// that will run on it. Grounded on original_source/penchy/jobs/job.py and
// the SystemComposition(jvm, nodeSetting) call sites in
// original_source/penchy/tests/test_job.py.
type SystemComposition struct {
	JVM         *jvm.JVM
	NodeSetting *NodeSetting
	Flow        []pipeline.Edge
}

// New builds a SystemComposition. flow is the already-flattened edge list
// of the client-side pipeline (spec.md §4.2's EdgeSort output); job.Check
// is responsible for validating it before a composition is scheduled.
func New(j *jvm.JVM, n *NodeSetting, flow []pipeline.Edge) *SystemComposition {
	return &SystemComposition{JVM: j, NodeSetting: n, Flow: flow}
}

// Hash is SHA1(jvm.Hash ++ nodeSetting.Hash), the identity spec.md §6
// mandates. Because JVM.Hash already folds in the workload's and tool's own
// FingerprintComponent (spec.md §9's Open Question resolution), this value
// changes whenever the workload, tool, jvm or node changes, without needing
// to hash Flow directly.
func (c *SystemComposition) Hash() string {
	return core.SHA1Hex(c.JVM.Hash(), c.NodeSetting.Hash())
}

// Timeout is the JVM's own timeout scaled by the node's timeout factor
// (spec.md §3: "timeout = jvm.timeout × nodeSetting.timeout_factor").
// Evaluated fresh on every call since TimeoutFactor may be a callable.
func (c *SystemComposition) Timeout() float64 {
	return float64(c.JVM.Timeout) * c.NodeSetting.Factor()
}

// Starts returns the composition's workload and tool, when set — the set
// EdgeSort needs as its roots when scheduling the client-side flow. The
// JVM itself is never among them: c.JVM is a plain *jvm.JVM, which is not
// a pipeline.Element, so a WrappedJVM's outputs do not feed the flow.
func (c *SystemComposition) Starts() []pipeline.Element {
	var starts []pipeline.Element
	if w := c.JVM.Workload(); w != nil {
		starts = append(starts, w)
	}
	if t := c.JVM.Tool(); t != nil {
		starts = append(starts, t)
	}
	if j, ok := any(c.JVM).(pipeline.Element); ok {
		starts = append(starts, j)
	}
	return starts
}
