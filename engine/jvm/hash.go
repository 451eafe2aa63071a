package jvm

import "penchy/engine/core"

// Hash returns the SHA-1 identity hash spec.md §3/§6 uses to identify a
// SystemComposition across the wire: SHA1(path, options), extended per
// spec.md §9's Open Question resolution to additionally fold in the
// workload's and tool's own FingerprintComponent, so that changing either
// changes the hash even though SystemComposition.Hash is defined purely as
// SHA1(jvm.Hash ++ nodeSetting.Hash) with no separate workload/tool term.
func (j *JVM) Hash() string {
	parts := []string{j.path, j.userOptions}
	if j.workload != nil {
		parts = append(parts, "workload:"+j.workload.FingerprintComponent())
	}
	if j.tool != nil {
		parts = append(parts, "tool:"+j.tool.FingerprintComponent())
	}
	return core.SHA1Hex(parts...)
}
