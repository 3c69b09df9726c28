package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
)

// maxSampleCycles caps DepStats.CyclesList.
const maxSampleCycles = 10

// DependencyGraph holds Finish-to-Start edges (predecessor -> successor) between
// the tasks it was built from. References to tasks outside that set are ignored
// as edges, but a task that declared any still counts as having predecessors.
type DependencyGraph struct {
	ids      []int
	preds    map[int][]int
	succs    map[int][]int
	declared map[int]struct{}
}

func NewDependencyGraph(tasks []task.Task) *DependencyGraph {
	g := &DependencyGraph{
		preds:    make(map[int][]int, len(tasks)),
		succs:    make(map[int][]int, len(tasks)),
		declared: make(map[int]struct{}),
	}
	present := make(map[int]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := present[t.TaskID]; dup {
			continue
		}
		present[t.TaskID] = struct{}{}
		g.ids = append(g.ids, t.TaskID)
	}
	type edge struct{ from, to int }
	edgeSet := map[edge]struct{}{}
	for _, t := range tasks {
		if len(t.PredIDs) > 0 {
			g.declared[t.TaskID] = struct{}{}
		}
		for _, p := range t.PredIDs {
			if _, ok := present[p]; !ok {
				continue
			}
			e := edge{from: p, to: t.TaskID}
			if _, dup := edgeSet[e]; dup {
				continue
			}
			edgeSet[e] = struct{}{}
			g.preds[t.TaskID] = append(g.preds[t.TaskID], p)
			g.succs[p] = append(g.succs[p], t.TaskID)
		}
	}
	for id := range g.preds {
		sort.Ints(g.preds[id])
	}
	for id := range g.succs {
		sort.Ints(g.succs[id])
	}
	return g
}

func (g *DependencyGraph) Predecessors(id int) []int { return g.preds[id] }
func (g *DependencyGraph) Successors(id int) []int   { return g.succs[id] }

// TransitiveSuccessors lists every task reachable from ids over successor
// edges, in breadth-first order, excluding ids themselves.
func (g *DependencyGraph) TransitiveSuccessors(ids []int) []int {
	visited := make(map[int]struct{}, len(ids))
	queue := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, id)
	}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range g.succs[cur] {
			if _, ok := visited[s]; ok {
				continue
			}
			visited[s] = struct{}{}
			out = append(out, s)
			queue = append(queue, s)
		}
	}
	return out
}

// CyclicComponents returns the strongly connected components that contain a
// cycle (more than one task, or a task depending on itself). Each component
// is sorted; components are ordered by their smallest ID.
func (g *DependencyGraph) CyclicComponents() [][]int {
	var (
		index   = 0
		indices = make(map[int]int, len(g.ids))
		low     = make(map[int]int, len(g.ids))
		onStack = make(map[int]bool, len(g.ids))
		stack   []int
		out     [][]int
	)
	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = index
		low[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succs[v] {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], indices[w])
			}
		}

		if low[v] != indices[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 || g.hasSelfLoop(v) {
			sort.Ints(comp)
			out = append(out, comp)
		}
	}

	for _, id := range g.ids {
		if _, seen := indices[id]; !seen {
			strongConnect(id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (g *DependencyGraph) hasSelfLoop(id int) bool {
	for _, s := range g.succs[id] {
		if s == id {
			return true
		}
	}
	return false
}

// cycleThrough returns the shortest cycle starting and ending at start using
// only tasks in comp, as the ordered IDs before returning to start.
func (g *DependencyGraph) cycleThrough(start int, comp map[int]struct{}) []int {
	parent := map[int]int{start: start}
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.succs[u] {
			if _, ok := comp[v]; !ok {
				continue
			}
			if v == start {
				var path []int
				for x := u; x != start; x = parent[x] {
					path = append(path, x)
				}
				path = append(path, start)
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if _, seen := parent[v]; !seen {
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}
	return []int{start}
}

// Isolated counts tasks that declare no predecessors and have no successors.
func (g *DependencyGraph) Isolated() int {
	n := 0
	for _, id := range g.ids {
		if _, ok := g.declared[id]; ok {
			continue
		}
		if len(g.succs[id]) == 0 {
			n++
		}
	}
	return n
}

// Stats summarizes the graph. Cycles counts every task that takes part in at
// least one cycle, so two tasks depending on each other count as 2.
func (g *DependencyGraph) Stats() task.DepStats {
	var st task.DepStats
	for _, comp := range g.CyclicComponents() {
		st.Cycles += len(comp)
		if len(st.CyclesList) >= maxSampleCycles {
			continue
		}
		members := make(map[int]struct{}, len(comp))
		for _, id := range comp {
			members[id] = struct{}{}
		}
		st.CyclesList = append(st.CyclesList, g.cycleThrough(comp[0], members))
	}
	st.Isolated = g.Isolated()
	return st
}

// FormatCycle renders a sample cycle as "a -> b -> a".
func FormatCycle(cycle []int) string {
	if len(cycle) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		parts = append(parts, strconv.Itoa(id))
	}
	parts = append(parts, strconv.Itoa(cycle[0]))
	return strings.Join(parts, " -> ")
}

// resolveDependencies checks dependency references of error-free rows against
// every TaskID that parsed, then analyzes the graph of accepted tasks.
func resolveDependencies(rows []rowResult, mode UnknownDepsMode) ([]task.Task, []task.ImportError, task.DepStats) {
	known := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if r.idOK {
			known[r.task.TaskID] = struct{}{}
		}
	}

	accepted := make([]task.Task, 0, len(rows))
	var errs []task.ImportError
	unknownRefs := 0
	for _, r := range rows {
		if len(r.errs) > 0 {
			continue
		}
		var unknown []string
		for _, p := range r.task.PredIDs {
			if _, ok := known[p]; !ok {
				unknown = append(unknown, strconv.Itoa(p))
			}
		}
		if len(unknown) > 0 {
			if mode == UnknownDepsError {
				errs = append(errs, task.ImportError{
					Row:     r.row,
					Column:  ColDependencies,
					Message: fmt.Sprintf("Unknown TaskID reference(s): %s", strings.Join(unknown, ", ")),
					Value:   r.rawDeps,
				})
				continue
			}
			unknownRefs += len(unknown)
		}
		accepted = append(accepted, r.task)
	}

	stats := NewDependencyGraph(accepted).Stats()
	stats.UnknownRefs = unknownRefs
	return accepted, errs, stats
}

// AnalyzeDependencies computes dependency statistics for an already imported task set.
func AnalyzeDependencies(tasks []task.Task) task.DepStats {
	known := make(map[int]struct{}, len(tasks))
	for _, t := range tasks {
		known[t.TaskID] = struct{}{}
	}
	stats := NewDependencyGraph(tasks).Stats()
	for _, t := range tasks {
		for _, p := range t.PredIDs {
			if _, ok := known[p]; !ok {
				stats.UnknownRefs++
			}
		}
	}
	return stats
}
