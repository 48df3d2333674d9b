package topology

import (
	"fmt"
	"math"
)

// OptimizationReport heuristic quality assessment of a topology
type OptimizationReport struct {
	Suggestions          []string           `json:"suggestions"`
	Score                float64            `json:"optimization_score"`
	RedundantConnections []string           `json:"redundant_connections"`
	IsolatedDevices      []string           `json:"isolated_devices"`
	Before               OptimizationCounts `json:"before"`
	After                OptimizationCounts `json:"after"`
}

// OptimizationCounts graph size before and after applying every suggestion
type OptimizationCounts struct {
	Devices     int `json:"devices"`
	Connections int `json:"connections"`
}

const (
	redundancyPenalty = 30.0
	isolationPenalty  = 50.0
)

// OptimizationAdvisor finds redundant edges and isolated devices
type OptimizationAdvisor struct {
	connectivity *ConnectivityAnalyzer
}

func NewOptimizationAdvisor() *OptimizationAdvisor {
	return &OptimizationAdvisor{connectivity: NewConnectivityAnalyzer()}
}

// Optimize scores the topology:
// 100 - 30*redundant/connections - 50*isolated/devices, clamped to [0, 100].
func (a *OptimizationAdvisor) Optimize(t *MicrogridTopology) OptimizationReport {
	redundant := a.RedundantConnections(t)
	isolated := a.connectivity.IsolatedDevices(t)

	suggestions := make([]string, 0, len(redundant)+len(isolated))
	for _, id := range redundant {
		suggestions = append(suggestions, fmt.Sprintf("Remove redundant connection %s", id))
	}
	for _, id := range isolated {
		suggestions = append(suggestions, fmt.Sprintf("Connect isolated device %s to the main network", id))
	}

	devices, connections := len(t.devices), len(t.connections)
	score := 100.0
	if connections > 0 {
		score -= redundancyPenalty * float64(len(redundant)) / float64(connections)
	}
	if devices > 0 {
		score -= isolationPenalty * float64(len(isolated)) / float64(devices)
	}
	score = math.Max(0, math.Min(100, score))

	return OptimizationReport{
		Suggestions:          suggestions,
		Score:                score,
		RedundantConnections: redundant,
		IsolatedDevices:      isolated,
		Before:               OptimizationCounts{Devices: devices, Connections: connections},
		After:                OptimizationCounts{Devices: devices, Connections: connections - len(redundant)},
	}
}

// RedundantConnections ids of every edge after the first one joining the same
// unordered device pair, in insertion order
func (a *OptimizationAdvisor) RedundantConnections(t *MicrogridTopology) []string {
	seen := make(map[string]bool, len(t.connections))
	redundant := make([]string, 0)
	for _, c := range t.orderedConnections() {
		key := c.PairKey()
		if seen[key] {
			redundant = append(redundant, c.id)
			continue
		}
		seen[key] = true
	}
	return redundant
}
