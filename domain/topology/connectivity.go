package topology

// ConnectivityReport result of a connected-components scan
type ConnectivityReport struct {
	Components       [][]string `json:"connected_components"`
	ComponentCount   int        `json:"number_of_components"`
	IsolatedDevices  []string   `json:"isolated_devices"`
	IsFullyConnected bool       `json:"is_fully_connected"`
	TotalDevices     int        `json:"total_devices"`
}

// ConnectivityAnalyzer read-only graph algorithms over a topology.
// Only active connections contribute edges; neighbour order follows
// connection insertion order.
type ConnectivityAnalyzer struct{}

func NewConnectivityAnalyzer() *ConnectivityAnalyzer {
	return &ConnectivityAnalyzer{}
}

type adjacency struct {
	order []string
	edges map[string][]string
}

func buildAdjacency(t *MicrogridTopology) adjacency {
	adj := adjacency{
		order: make([]string, 0, len(t.deviceOrder)),
		edges: make(map[string][]string, len(t.deviceOrder)),
	}
	for _, id := range t.deviceOrder {
		adj.order = append(adj.order, id)
		adj.edges[id] = nil
	}
	for _, c := range t.orderedConnections() {
		if !c.active {
			continue
		}
		if _, ok := adj.edges[c.sourceID]; !ok {
			continue
		}
		if _, ok := adj.edges[c.targetID]; !ok {
			continue
		}
		adj.edges[c.sourceID] = append(adj.edges[c.sourceID], c.targetID)
		adj.edges[c.targetID] = append(adj.edges[c.targetID], c.sourceID)
	}
	return adj
}

// CheckConnectivity finds every connected component. An isolated device forms
// a component of its own.
func (a *ConnectivityAnalyzer) CheckConnectivity(t *MicrogridTopology) ConnectivityReport {
	adj := buildAdjacency(t)
	visited := make(map[string]bool, len(adj.order))

	components := make([][]string, 0)
	for _, id := range adj.order {
		if visited[id] {
			continue
		}
		components = append(components, dfs(adj, id, visited))
	}

	isolated := make([]string, 0)
	for _, id := range adj.order {
		if len(adj.edges[id]) == 0 {
			isolated = append(isolated, id)
		}
	}

	return ConnectivityReport{
		Components:       components,
		ComponentCount:   len(components),
		IsolatedDevices:  isolated,
		IsFullyConnected: len(components) == 1 && len(isolated) == 0,
		TotalDevices:     len(adj.order),
	}
}

func dfs(adj adjacency, start string, visited map[string]bool) []string {
	var component []string
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		component = append(component, id)

		next := adj.edges[id]
		for i := len(next) - 1; i >= 0; i-- {
			if !visited[next[i]] {
				stack = append(stack, next[i])
			}
		}
	}
	return component
}

// FindShortestPath returns the hop-minimal device sequence from -> to, or an
// empty slice when either device is absent or unreachable.
func (a *ConnectivityAnalyzer) FindShortestPath(t *MicrogridTopology, from, to string) []string {
	adj := buildAdjacency(t)
	if _, ok := adj.edges[from]; !ok {
		return []string{}
	}
	if _, ok := adj.edges[to]; !ok {
		return []string{}
	}
	if from == to {
		return []string{from}
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			break
		}
		for _, next := range adj.edges[id] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = id
			queue = append(queue, next)
		}
	}

	if _, reached := prev[to]; !reached {
		return []string{}
	}
	var path []string
	for at := to; at != ""; at = prev[at] {
		path = append(path, at)
		if at == from {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Neighbors devices joined to id by an active connection
func (a *ConnectivityAnalyzer) Neighbors(t *MicrogridTopology, id string) []string {
	adj := buildAdjacency(t)
	out := make([]string, len(adj.edges[id]))
	copy(out, adj.edges[id])
	return out
}

// IsolatedDevices devices without any active connection
func (a *ConnectivityAnalyzer) IsolatedDevices(t *MicrogridTopology) []string {
	return a.CheckConnectivity(t).IsolatedDevices
}
