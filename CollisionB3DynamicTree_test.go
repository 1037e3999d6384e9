package bounce3

import (
	"math"
	"math/rand"
	"testing"
)

func makeBox(lx, ly, lz, ux, uy, uz float64) B3AABB {
	return MakeB3AABBFromBounds(MakeB3Vec3(lx, ly, lz), MakeB3Vec3(ux, uy, uz))
}

func queryIds(tree *B3DynamicTree, aabb B3AABB) map[int]int {
	visited := make(map[int]int)
	tree.Query(func(nodeId int) bool {
		visited[nodeId]++
		return true
	}, aabb)
	return visited
}

func TestDynamicTreeInsertQueryScenario(t *testing.T) {
	tree := NewB3DynamicTree()

	idA := tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	idB := tree.InsertNode(makeBox(5, 5, 5, 6, 6, 6), "B")
	idC := tree.InsertNode(makeBox(0.5, 0.5, 0.5, 1.5, 1.5, 1.5), "C")

	tree.Validate()

	query := makeBox(0, 0, 0, 2, 2, 2)

	visited := queryIds(tree, query)
	if len(visited) != 2 {
		t.Fatalf("query visited %d leaves, want 2", len(visited))
	}
	if visited[idA] != 1 || visited[idC] != 1 {
		t.Errorf("query visited %v, want {%d:1, %d:1}", visited, idA, idC)
	}
	if _, ok := visited[idB]; ok {
		t.Errorf("query visited B (id %d), want A and C only", idB)
	}

	tree.RemoveNode(idA)
	tree.Validate()

	visited = queryIds(tree, query)
	if len(visited) != 1 || visited[idC] != 1 {
		t.Errorf("query after removing A visited %v, want {%d:1}", visited, idC)
	}
}

func TestDynamicTreeContainment(t *testing.T) {
	tree := NewB3DynamicTree()
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		lower := MakeB3Vec3(
			rnd.Float64()*100.0-50.0,
			rnd.Float64()*100.0-50.0,
			rnd.Float64()*100.0-50.0,
		)
		upper := lower.Add(MakeB3Vec3(
			rnd.Float64()*5.0,
			rnd.Float64()*5.0,
			rnd.Float64()*5.0,
		))
		aabb := MakeB3AABBFromBounds(lower, upper)

		id := tree.InsertNode(aabb, i)
		if tree.GetFatAABB(id).Contains(aabb) == false {
			t.Fatalf("fat AABB of node %d does not contain the inserted box", id)
		}
	}
}

func TestDynamicTreeRoundTripNonEmpty(t *testing.T) {
	tree := NewB3DynamicTree()

	tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	tree.InsertNode(makeBox(3, 0, 0, 4, 1, 1), "B")
	tree.InsertNode(makeBox(0, 3, 0, 1, 4, 1), "C")
	tree.Validate()

	type nodeShot struct {
		parent, child1, child2, height int
		aabb                           B3AABB
	}

	snapshot := func() (int, int, map[int]nodeShot) {
		active := make(map[int]nodeShot)
		for i := 0; i < tree.M_nodeCapacity; i++ {
			if tree.M_nodes[i].Height < 0 {
				continue
			}
			n := tree.M_nodes[i]
			active[i] = nodeShot{n.Parent, n.Child1, n.Child2, n.Height, n.Aabb}
		}
		return tree.M_root, tree.M_nodeCount, active
	}

	rootBefore, countBefore, activeBefore := snapshot()

	id := tree.InsertNode(makeBox(10, 10, 10, 11, 11, 11), "D")
	tree.Validate()
	tree.RemoveNode(id)
	tree.Validate()

	rootAfter, countAfter, activeAfter := snapshot()

	if rootAfter != rootBefore {
		t.Errorf("root = %d after round trip, want %d", rootAfter, rootBefore)
	}
	if countAfter != countBefore {
		t.Errorf("node count = %d after round trip, want %d", countAfter, countBefore)
	}
	if len(activeAfter) != len(activeBefore) {
		t.Fatalf("active node count = %d after round trip, want %d", len(activeAfter), len(activeBefore))
	}
	for i, before := range activeBefore {
		after, ok := activeAfter[i]
		if !ok {
			t.Fatalf("node %d missing after round trip", i)
		}
		if after != before {
			t.Errorf("node %d = %+v after round trip, want %+v", i, after, before)
		}
	}
}

func TestDynamicTreeRoundTripSingleLeaf(t *testing.T) {
	tree := NewB3DynamicTree()

	id := tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	if tree.M_root != id {
		t.Fatalf("root = %d, want the single leaf %d", tree.M_root, id)
	}

	tree.RemoveNode(id)
	if tree.M_root != B3_nullNode {
		t.Errorf("root = %d after removing the only leaf, want null", tree.M_root)
	}
	if tree.M_nodeCount != 0 {
		t.Errorf("node count = %d after removing the only leaf, want 0", tree.M_nodeCount)
	}
	tree.Validate()
}

func TestDynamicTreeNodeIdReuse(t *testing.T) {
	tree := NewB3DynamicTree()

	tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	idB := tree.InsertNode(makeBox(5, 0, 0, 6, 1, 1), "B")

	tree.RemoveNode(idB)
	if tree.M_nodes[idB].Height != -1 {
		t.Errorf("freed node height = %d, want -1", tree.M_nodes[idB].Height)
	}
	if tree.M_nodes[idB].UserData != nil {
		t.Errorf("freed node userData = %v, want nil", tree.M_nodes[idB].UserData)
	}

	idC := tree.InsertNode(makeBox(5, 0, 0, 6, 1, 1), "C")
	if idC != idB {
		t.Errorf("new leaf id = %d, want recycled id %d", idC, idB)
	}
	if tree.GetUserData(idC) != "C" {
		t.Errorf("userData = %v, want C", tree.GetUserData(idC))
	}
}

func TestDynamicTreeUpdatePreservesId(t *testing.T) {
	tree := NewB3DynamicTree()

	id := tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	tree.InsertNode(makeBox(20, 0, 0, 21, 1, 1), "B")

	// Move A to x = [10, 11] with a positive x displacement.
	tree.UpdateNode(id, makeBox(10, 0, 0, 11, 1, 1), MakeB3Vec3(1, 0, 0))
	tree.Validate()

	if tree.GetUserData(id) != "A" {
		t.Fatalf("userData = %v after update, want A", tree.GetUserData(id))
	}

	fat := tree.GetFatAABB(id)
	if fat.LowerBound.X() != 10.0-B3_aabbExtension {
		t.Errorf("fat lower x = %v, want %v", fat.LowerBound.X(), 10.0-B3_aabbExtension)
	}
	// Predictive extension only grows the side the displacement points at.
	wantUpper := 11.0 + B3_aabbExtension + B3_aabbMultiplier*1.0
	if fat.UpperBound.X() != wantUpper {
		t.Errorf("fat upper x = %v, want %v", fat.UpperBound.X(), wantUpper)
	}

	if visited := queryIds(tree, makeBox(0, 0, 0, 2, 2, 2)); len(visited) != 0 {
		t.Errorf("query at the old location visited %v, want none", visited)
	}
	visited := queryIds(tree, makeBox(10, 0, 0, 11, 1, 1))
	if len(visited) != 1 || visited[id] != 1 {
		t.Errorf("query at the new location visited %v, want {%d:1}", visited, id)
	}
}

func TestDynamicTreePoolGrowth(t *testing.T) {
	tree := NewB3DynamicTree()

	// 100 leaves plus 99 branches overflows the initial 32 node pool
	// several times.
	ids := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		x := float64(i) * 3.0
		ids = append(ids, tree.InsertNode(makeBox(x, 0, 0, x+1, 1, 1), i))
	}

	tree.Validate()

	if tree.M_nodeCount != 199 {
		t.Errorf("node count = %d, want 199", tree.M_nodeCount)
	}
	if tree.M_nodeCapacity < 199 {
		t.Errorf("node capacity = %d, want >= 199", tree.M_nodeCapacity)
	}

	// Indices are stable across pool growth.
	for i, id := range ids {
		if tree.GetUserData(id) != i {
			t.Fatalf("userData of node %d = %v, want %d", id, tree.GetUserData(id), i)
		}
		x := float64(i) * 3.0
		visited := queryIds(tree, makeBox(x, 0, 0, x+1, 1, 1))
		if visited[id] != 1 {
			t.Fatalf("query for leaf %d visited %v", id, visited)
		}
	}
}

func TestDynamicTreeQueryCompleteness(t *testing.T) {
	tree := NewB3DynamicTree()
	rnd := rand.New(rand.NewSource(42))

	boxes := make(map[int]B3AABB)
	for i := 0; i < 60; i++ {
		lower := MakeB3Vec3(
			rnd.Float64()*80.0-40.0,
			rnd.Float64()*80.0-40.0,
			rnd.Float64()*80.0-40.0,
		)
		upper := lower.Add(MakeB3Vec3(
			0.5+rnd.Float64()*4.0,
			0.5+rnd.Float64()*4.0,
			0.5+rnd.Float64()*4.0,
		))
		aabb := MakeB3AABBFromBounds(lower, upper)
		id := tree.InsertNode(aabb, i)
		boxes[id] = aabb
	}

	for q := 0; q < 25; q++ {
		lower := MakeB3Vec3(
			rnd.Float64()*80.0-40.0,
			rnd.Float64()*80.0-40.0,
			rnd.Float64()*80.0-40.0,
		)
		upper := lower.Add(MakeB3Vec3(
			rnd.Float64()*20.0,
			rnd.Float64()*20.0,
			rnd.Float64()*20.0,
		))
		query := MakeB3AABBFromBounds(lower, upper)

		visited := queryIds(tree, query)

		// Brute force over all live leaves.
		for id := range boxes {
			want := B3TestOverlapBoundingBoxes(tree.GetFatAABB(id), query)
			count := visited[id]
			if want && count != 1 {
				t.Fatalf("query %d: leaf %d visited %d times, want 1", q, id, count)
			}
			if !want && count != 0 {
				t.Fatalf("query %d: leaf %d visited %d times, want 0", q, id, count)
			}
		}
		for id := range visited {
			if _, ok := boxes[id]; !ok {
				t.Fatalf("query %d visited unknown node %d", q, id)
			}
		}
	}
}

func TestDynamicTreeQueryEarlyStop(t *testing.T) {
	tree := NewB3DynamicTree()
	for i := 0; i < 10; i++ {
		tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), i)
	}

	calls := 0
	tree.Query(func(nodeId int) bool {
		calls++
		return false
	}, makeBox(0, 0, 0, 1, 1, 1))

	if calls != 1 {
		t.Errorf("callback invoked %d times after requesting stop, want 1", calls)
	}
}

func TestDynamicTreeValidateFuzz(t *testing.T) {
	tree := NewB3DynamicTree()
	rnd := rand.New(rand.NewSource(1))

	live := make([]int, 0)
	boxes := make(map[int]B3AABB)

	randomBox := func() B3AABB {
		lower := MakeB3Vec3(
			rnd.Float64()*100.0-50.0,
			rnd.Float64()*100.0-50.0,
			rnd.Float64()*100.0-50.0,
		)
		upper := lower.Add(MakeB3Vec3(
			0.5+rnd.Float64()*4.5,
			0.5+rnd.Float64()*4.5,
			0.5+rnd.Float64()*4.5,
		))
		return MakeB3AABBFromBounds(lower, upper)
	}

	for step := 0; step < 1000; step++ {
		op := rnd.Intn(3)
		switch {
		case op == 0 || len(live) == 0:
			aabb := randomBox()
			id := tree.InsertNode(aabb, step)
			live = append(live, id)
			boxes[id] = aabb

		case op == 1:
			i := rnd.Intn(len(live))
			id := live[i]
			tree.RemoveNode(id)
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			delete(boxes, id)

		default:
			i := rnd.Intn(len(live))
			id := live[i]
			old := boxes[id]
			aabb := randomBox()
			displacement := aabb.GetCenter().Sub(old.GetCenter())
			tree.UpdateNode(id, aabb, displacement)
			boxes[id] = aabb
		}

		tree.Validate()

		if tree.M_nodeCount != MaxInt(0, 2*len(live)-1) {
			t.Fatalf("step %d: node count = %d with %d leaves", step, tree.M_nodeCount, len(live))
		}
	}

	// Fattening never shrinks a stored box.
	for id, aabb := range boxes {
		if tree.GetFatAABB(id).Contains(aabb) == false {
			t.Errorf("fat AABB of node %d does not contain its box", id)
		}
	}

	if len(live) > 0 {
		if ratio := tree.GetAreaRatio(); ratio < 1.0 {
			t.Errorf("area ratio = %v, want >= 1", ratio)
		}
		if tree.GetMaxBalance() < 0 {
			t.Error("negative max balance")
		}
	}
}

func TestDynamicTreeRayCastSingleHit(t *testing.T) {
	tree := NewB3DynamicTree()

	idA := tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	tree.InsertNode(makeBox(0, 5, 0, 1, 6, 1), "B")
	tree.InsertNode(makeBox(0, 0, 5, 1, 1, 6), "C")

	input := MakeB3RayCastInput()
	input.P1 = MakeB3Vec3(-2, 0.5, 0.5)
	input.P2 = MakeB3Vec3(3, 0.5, 0.5)
	input.MaxFraction = 1.0

	visited := make(map[int]int)
	tree.RayCast(func(in B3RayCastInput, nodeId int) float64 {
		visited[nodeId]++
		return in.MaxFraction
	}, input)

	if len(visited) != 1 || visited[idA] != 1 {
		t.Errorf("ray cast visited %v, want {%d:1}", visited, idA)
	}
}

func TestDynamicTreeRayCastNarrowing(t *testing.T) {
	tree := NewB3DynamicTree()

	// Insert the far box first: traversal pops the most recently pushed
	// child, so the near box is visited first and its hit fraction prunes
	// the far one.
	idB := tree.InsertNode(makeBox(5, 0, 0, 6, 1, 1), "B")
	idA := tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")

	input := MakeB3RayCastInput()
	input.P1 = MakeB3Vec3(-2, 0.5, 0.5)
	input.P2 = MakeB3Vec3(12, 0.5, 0.5)
	input.MaxFraction = 1.0

	visited := make(map[int]int)
	bestFraction := input.MaxFraction
	tree.RayCast(func(in B3RayCastInput, nodeId int) float64 {
		visited[nodeId]++

		output := MakeB3RayCastOutput()
		if tree.GetFatAABB(nodeId).RayCast(&output, in) {
			bestFraction = output.Fraction
			return output.Fraction
		}
		return in.MaxFraction
	}, input)

	if visited[idA] != 1 {
		t.Fatalf("ray cast visited %v, want the near box exactly once", visited)
	}
	if _, ok := visited[idB]; ok {
		t.Errorf("ray cast visited the far box %d past the narrowed fraction", idB)
	}

	// Fraction of the near box's fattened lower face.
	want := (0.0 - B3_aabbExtension - input.P1.X()) / (input.P2.X() - input.P1.X())
	if math.Abs(bestFraction-want) > 1e-12 {
		t.Errorf("best fraction = %v, want %v", bestFraction, want)
	}
}

func TestDynamicTreeRayCastTerminate(t *testing.T) {
	tree := NewB3DynamicTree()
	for i := 0; i < 8; i++ {
		x := float64(i) * 2.0
		tree.InsertNode(makeBox(x, 0, 0, x+1, 1, 1), i)
	}

	input := MakeB3RayCastInput()
	input.P1 = MakeB3Vec3(-2, 0.5, 0.5)
	input.P2 = MakeB3Vec3(20, 0.5, 0.5)
	input.MaxFraction = 1.0

	calls := 0
	tree.RayCast(func(in B3RayCastInput, nodeId int) float64 {
		calls++
		return 0.0
	}, input)

	if calls != 1 {
		t.Errorf("callback invoked %d times after terminating, want 1", calls)
	}
}

func TestDynamicTreeRayCastMaxFraction(t *testing.T) {
	tree := NewB3DynamicTree()

	idA := tree.InsertNode(makeBox(0, 0, 0, 1, 1, 1), "A")
	idB := tree.InsertNode(makeBox(5, 0, 0, 6, 1, 1), "B")

	// The segment ends at x = 3.6, well short of B.
	input := MakeB3RayCastInput()
	input.P1 = MakeB3Vec3(-2, 0.5, 0.5)
	input.P2 = MakeB3Vec3(12, 0.5, 0.5)
	input.MaxFraction = 0.4

	visited := make(map[int]int)
	tree.RayCast(func(in B3RayCastInput, nodeId int) float64 {
		visited[nodeId]++
		return in.MaxFraction
	}, input)

	if visited[idA] != 1 {
		t.Errorf("ray cast visited %v, want the box inside the range", visited)
	}
	if _, ok := visited[idB]; ok {
		t.Errorf("ray cast visited box %d beyond the max fraction", idB)
	}
}

func TestDynamicTreeRebuildBottomUp(t *testing.T) {
	tree := NewB3DynamicTree()
	rnd := rand.New(rand.NewSource(3))

	boxes := make(map[int]B3AABB)
	for i := 0; i < 40; i++ {
		x := rnd.Float64() * 100.0
		aabb := makeBox(x, 0, 0, x+1, 1, 1)
		boxes[tree.InsertNode(aabb, i)] = aabb
	}

	tree.RebuildBottomUp()

	if tree.M_nodeCount != 79 {
		t.Errorf("node count = %d after rebuild, want 79", tree.M_nodeCount)
	}

	// Every leaf survives the rebuild.
	for id, aabb := range boxes {
		visited := queryIds(tree, aabb)
		if visited[id] != 1 {
			t.Fatalf("leaf %d not found after rebuild, visited %v", id, visited)
		}
	}
}

func TestDynamicTreeShiftOrigin(t *testing.T) {
	tree := NewB3DynamicTree()

	id := tree.InsertNode(makeBox(10, 10, 10, 11, 11, 11), "A")
	tree.ShiftOrigin(MakeB3Vec3(10, 10, 10))

	fat := tree.GetFatAABB(id)
	if math.Abs(fat.LowerBound.X()-(-B3_aabbExtension)) > 1e-12 {
		t.Errorf("fat lower x = %v after shift, want %v", fat.LowerBound.X(), -B3_aabbExtension)
	}

	visited := queryIds(tree, makeBox(0, 0, 0, 1, 1, 1))
	if visited[id] != 1 {
		t.Errorf("query at the shifted location visited %v", visited)
	}
}
