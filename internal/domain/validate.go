package domain

// maxPriority caps successor weights; path counts grow exponentially on
// stacked diamonds.
const maxPriority = 1 << 30

// topoOrder returns a topological ordering of task indices using Kahn's
// algorithm. Tasks on a cycle (and everything downstream of one) are missing
// from the result.
func (g *Graph) topoOrder() []int {
	indeg := make([]int32, len(g.tasks))
	queue := make([]int, 0, len(g.tasks))
	for i := range g.tasks {
		indeg[i] = g.tasks[i].remaining.Load()
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(g.tasks))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range g.tasks[n].Dependents {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	return order
}

// findCycle extracts one cycle by depth-first search over dependent edges.
// The returned path starts and ends with the same id.
func (g *Graph) findCycle() []JobID {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.tasks))
	parent := make([]int, len(g.tasks))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.tasks[u].Dependents {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// back edge u -> v closes the cycle v -> ... -> u -> v
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.tasks {
		if color[i] == white && dfs(i) {
			break
		}
	}

	path := make([]JobID, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		path = append(path, g.tasks[cycle[i]].ID())
	}
	return path
}

// assignPriorities sets each task's weight to the number of paths leading
// out of it, so tasks that unblock more work are popped first. Tasks outside
// the topological order keep priority zero.
func (g *Graph) assignPriorities(order []int) {
	for k := len(order) - 1; k >= 0; k-- {
		t := &g.tasks[order[k]]
		p := 0
		for _, d := range t.Dependents {
			p += 1 + g.tasks[d].Priority
			if p > maxPriority {
				p = maxPriority
				break
			}
		}
		t.Priority = p
	}
}
