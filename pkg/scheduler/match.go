package scheduler

import (
	"github.com/rendergrid/rendergrid/pkg/types"
)

// NodeMatcher selects a feasible node for a job. Pure function, no state.
type NodeMatcher struct{}

// FindSuitableNode returns the online, idle node that satisfies the job's
// resource requirements with the highest power efficiency rating, or nil if
// none qualifies. Ties keep the first qualifying node in input order, so the
// selection is deterministic for identical input.
func (NodeMatcher) FindSuitableNode(job *types.Job, nodes []*types.Node) *types.Node {
	var best *types.Node
	for _, node := range nodes {
		if !node.Idle() {
			continue
		}
		if job.RequiresGPU && (node.Capabilities.GPUCount == 0 || node.Capabilities.GPUModel == "") {
			continue
		}
		if job.MemoryRequirementsGB > node.Capabilities.MemoryGB {
			continue
		}
		if job.CPURequirements > node.Capabilities.CPUCores {
			continue
		}
		if best == nil || node.PowerEfficiencyRating > best.PowerEfficiencyRating {
			best = node
		}
	}
	return best
}
