package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendergrid/rendergrid/pkg/types"
)

func testNode(id string, efficiency float64) *types.Node {
	return &types.Node{
		ID:     id,
		Status: types.NodeStatusOnline,
		Capabilities: types.NodeCapabilities{
			CPUCores: 16,
			MemoryGB: 64,
			GPUCount: 2,
			GPUModel: "RTX 4090",
		},
		PowerEfficiencyRating: efficiency,
	}
}

func TestFindSuitableNode(t *testing.T) {
	var m NodeMatcher

	tests := []struct {
		name     string
		job      *types.Job
		nodes    []*types.Node
		expected string // "" means no node
	}{
		{
			name: "picks most power efficient",
			job:  &types.Job{CPURequirements: 4, MemoryRequirementsGB: 16},
			nodes: []*types.Node{
				testNode("n1", 0.7),
				testNode("n2", 0.9),
				testNode("n3", 0.8),
			},
			expected: "n2",
		},
		{
			name: "efficiency tie keeps first in input order",
			job:  &types.Job{CPURequirements: 4, MemoryRequirementsGB: 16},
			nodes: []*types.Node{
				testNode("n1", 0.8),
				testNode("n2", 0.8),
			},
			expected: "n1",
		},
		{
			name: "skips busy and offline nodes",
			job:  &types.Job{CPURequirements: 4, MemoryRequirementsGB: 16},
			nodes: []*types.Node{
				func() *types.Node { n := testNode("n1", 0.9); n.CurrentJobID = "other"; return n }(),
				func() *types.Node { n := testNode("n2", 0.9); n.Status = types.NodeStatusOffline; return n }(),
				func() *types.Node { n := testNode("n3", 0.9); n.Status = types.NodeStatusMaintenance; return n }(),
				testNode("n4", 0.5),
			},
			expected: "n4",
		},
		{
			name: "gpu job needs gpu count and model",
			job:  &types.Job{RequiresGPU: true, CPURequirements: 4, MemoryRequirementsGB: 16},
			nodes: []*types.Node{
				func() *types.Node { n := testNode("n1", 0.9); n.Capabilities.GPUCount = 0; return n }(),
				func() *types.Node { n := testNode("n2", 0.9); n.Capabilities.GPUModel = ""; return n }(),
				testNode("n3", 0.5),
			},
			expected: "n3",
		},
		{
			name: "insufficient memory",
			job:  &types.Job{MemoryRequirementsGB: 128},
			nodes: []*types.Node{
				testNode("n1", 0.9),
			},
			expected: "",
		},
		{
			name: "insufficient cpu",
			job:  &types.Job{CPURequirements: 32},
			nodes: []*types.Node{
				testNode("n1", 0.9),
			},
			expected: "",
		},
		{
			name:     "no nodes",
			job:      &types.Job{},
			nodes:    nil,
			expected: "",
		},
		{
			name: "exact fit qualifies",
			job:  &types.Job{CPURequirements: 16, MemoryRequirementsGB: 64},
			nodes: []*types.Node{
				testNode("n1", 0.9),
			},
			expected: "n1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := m.FindSuitableNode(tt.job, tt.nodes)
			if tt.expected == "" {
				assert.Nil(t, node)
			} else {
				if assert.NotNil(t, node) {
					assert.Equal(t, tt.expected, node.ID)
				}
			}
		})
	}
}
