package bounce3

type B3TreeQueryCallback func(nodeId int) bool

type B3TreeRayCastCallback func(input B3RayCastInput, nodeId int) float64

const B3_nullNode = -1

type B3TreeNode struct {

	/// Enlarged AABB
	Aabb B3AABB

	UserData interface{}

	// union
	// {
	Parent int
	Next   int
	//};

	Child1 int
	Child2 int

	// leaf = 0, free node = -1
	Height int
}

func (node B3TreeNode) IsLeaf() bool {
	return node.Child1 == B3_nullNode
}

/// A dynamic AABB tree broad-phase, inspired by Nathanael Presson's btDbvt.
/// A dynamic tree arranges data in a binary tree to accelerate
/// queries such as volume queries and ray casts. Leafs are proxies
/// with an AABB. In the tree we expand the proxy AABB by B3_aabbExtension
/// so that the proxy AABB is bigger than the client object. This allows the client
/// object to move by small amounts without triggering a tree update.
///
/// Nodes are pooled and relocatable, so we use node indices rather than pointers.
type B3DynamicTree struct {

	// Public members:
	// None

	// Private members:
	M_root int

	M_nodes        []B3TreeNode
	M_nodeCount    int
	M_nodeCapacity int

	M_freeList int

	M_insertionCount int
}

func MakeB3DynamicTree() B3DynamicTree {

	tree := B3DynamicTree{}
	tree.M_root = B3_nullNode

	// Preallocate 32 nodes.
	tree.M_nodeCapacity = 32
	tree.M_nodeCount = 0
	tree.M_nodes = make([]B3TreeNode, tree.M_nodeCapacity)

	// Link the allocated nodes and make the first node
	// available for the next allocation.
	tree.AddToFreeList(tree.M_nodeCount)

	tree.M_insertionCount = 0

	return tree
}

func NewB3DynamicTree() *B3DynamicTree {
	res := MakeB3DynamicTree()
	return &res
}

// Starting from the given node, relink the linked list of free nodes.
func (tree *B3DynamicTree) AddToFreeList(node int) {
	for i := node; i < tree.M_nodeCapacity-1; i++ {
		tree.M_nodes[i].Next = i + 1
		tree.M_nodes[i].Height = -1
	}

	tree.M_nodes[tree.M_nodeCapacity-1].Next = B3_nullNode
	tree.M_nodes[tree.M_nodeCapacity-1].Height = -1

	// Make the node available for the next allocation.
	tree.M_freeList = node
}

// Allocate a node from the pool. Grow the pool if necessary.
func (tree *B3DynamicTree) AllocateNode() int {

	// Expand the node pool as needed.
	if tree.M_freeList == B3_nullNode {
		B3Assert(tree.M_nodeCount == tree.M_nodeCapacity)

		// The free list is empty. Rebuild a bigger pool.
		// Existing indices stay valid because the slice only grows.
		tree.M_nodes = append(tree.M_nodes, make([]B3TreeNode, tree.M_nodeCapacity)...)
		tree.M_nodeCapacity *= 2

		// Link the new nodes and make the first of them available
		// for the next allocation.
		tree.AddToFreeList(tree.M_nodeCount)
	}

	// Peel a node off the free list.
	nodeId := tree.M_freeList
	tree.M_freeList = tree.M_nodes[nodeId].Next
	tree.M_nodes[nodeId].Parent = B3_nullNode
	tree.M_nodes[nodeId].Child1 = B3_nullNode
	tree.M_nodes[nodeId].Child2 = B3_nullNode
	tree.M_nodes[nodeId].Height = 0
	tree.M_nodes[nodeId].UserData = nil
	tree.M_nodeCount++

	return nodeId
}

// Return a node to the pool.
func (tree *B3DynamicTree) FreeNode(nodeId int) {
	B3Assert(0 <= nodeId && nodeId < tree.M_nodeCapacity)
	B3Assert(0 < tree.M_nodeCount)
	tree.M_nodes[nodeId].Next = tree.M_freeList
	tree.M_nodes[nodeId].Height = -1
	tree.M_nodes[nodeId].UserData = nil
	tree.M_freeList = nodeId
	tree.M_nodeCount--
}

/// Insert a proxy into the tree as a leaf node. The stored AABB is the given
/// AABB fattened by B3_aabbExtension on every axis. We return the index
/// of the node instead of a pointer so that we can grow
/// the node pool.
func (tree *B3DynamicTree) InsertNode(aabb B3AABB, userData interface{}) int {

	proxyId := tree.AllocateNode()

	// Fatten the aabb.
	r := MakeB3Vec3(B3_aabbExtension, B3_aabbExtension, B3_aabbExtension)
	tree.M_nodes[proxyId].Aabb.LowerBound = aabb.LowerBound.Sub(r)
	tree.M_nodes[proxyId].Aabb.UpperBound = aabb.UpperBound.Add(r)
	tree.M_nodes[proxyId].UserData = userData
	tree.M_nodes[proxyId].Height = 0

	tree.InsertLeaf(proxyId)

	return proxyId
}

/// Remove a proxy from the tree. The node index becomes invalid and is
/// recycled by a later insertion.
func (tree *B3DynamicTree) RemoveNode(proxyId int) {
	B3Assert(0 <= proxyId && proxyId < tree.M_nodeCapacity)
	B3Assert(tree.M_nodes[proxyId].IsLeaf())

	tree.RemoveLeaf(proxyId)
	tree.FreeNode(proxyId)
}

/// Re-insert a proxy with a new AABB, keeping the same node index. The stored
/// AABB is fattened by B3_aabbExtension and extended along the displacement
/// direction by B3_aabbMultiplier * displacement to predict motion.
/// The caller decides when an update is necessary; no escape test is
/// performed here.
func (tree *B3DynamicTree) UpdateNode(proxyId int, aabb B3AABB, displacement B3Vec3) {
	B3Assert(tree.M_root != B3_nullNode)
	B3Assert(0 <= proxyId && proxyId < tree.M_nodeCapacity)
	B3Assert(tree.M_nodes[proxyId].IsLeaf())

	tree.RemoveLeaf(proxyId)

	// Extend AABB.
	b := aabb
	r := MakeB3Vec3(B3_aabbExtension, B3_aabbExtension, B3_aabbExtension)
	b.LowerBound = b.LowerBound.Sub(r)
	b.UpperBound = b.UpperBound.Add(r)

	// Predict AABB displacement.
	d := displacement.Mul(B3_aabbMultiplier)

	for i := 0; i < 3; i++ {
		if d[i] < 0.0 {
			b.LowerBound[i] += d[i]
		} else {
			b.UpperBound[i] += d[i]
		}
	}

	tree.M_nodes[proxyId].Aabb = b

	tree.InsertLeaf(proxyId)
}

func (tree B3DynamicTree) GetUserData(proxyId int) interface{} {
	B3Assert(0 <= proxyId && proxyId < tree.M_nodeCapacity)
	return tree.M_nodes[proxyId].UserData
}

func (tree B3DynamicTree) GetFatAABB(proxyId int) B3AABB {
	B3Assert(0 <= proxyId && proxyId < tree.M_nodeCapacity)
	return tree.M_nodes[proxyId].Aabb
}

// Find the best branch node to pair with the given leaf AABB, starting from
// the root. An approximation of the surface area heuristic (SAH) is used:
// surface area is a cheap proxy for the likelihood of a volume being hit
// by a query.
func (tree B3DynamicTree) FindBest(leafAABB B3AABB) int {

	index := tree.M_root
	for tree.M_nodes[index].IsLeaf() == false {
		child1 := tree.M_nodes[index].Child1
		child2 := tree.M_nodes[index].Child2

		branchArea := tree.M_nodes[index].Aabb.GetSurfaceArea()

		combinedAABB := MakeB3AABB()
		combinedAABB.CombineTwoInPlace(leafAABB, tree.M_nodes[index].Aabb)
		combinedArea := combinedAABB.GetSurfaceArea()

		// Cost of creating a new parent for this node and the new leaf
		branchCost := 2.0 * combinedArea

		// Minimum cost of pushing the leaf further down the tree
		inheritanceCost := 2.0 * (combinedArea - branchArea)

		// Cost of descending into child1
		childCost1 := 0.0
		if tree.M_nodes[child1].IsLeaf() {
			aabb := MakeB3AABB()
			aabb.CombineTwoInPlace(leafAABB, tree.M_nodes[child1].Aabb)
			childCost1 = aabb.GetSurfaceArea()
		} else {
			aabb := MakeB3AABB()
			aabb.CombineTwoInPlace(leafAABB, tree.M_nodes[child1].Aabb)
			oldArea := tree.M_nodes[child1].Aabb.GetSurfaceArea()
			newArea := aabb.GetSurfaceArea()
			childCost1 = (newArea - oldArea) + inheritanceCost
		}

		// Cost of descending into child2
		childCost2 := 0.0
		if tree.M_nodes[child2].IsLeaf() {
			aabb := MakeB3AABB()
			aabb.CombineTwoInPlace(leafAABB, tree.M_nodes[child2].Aabb)
			childCost2 = aabb.GetSurfaceArea()
		} else {
			aabb := MakeB3AABB()
			aabb.CombineTwoInPlace(leafAABB, tree.M_nodes[child2].Aabb)
			oldArea := tree.M_nodes[child2].Aabb.GetSurfaceArea()
			newArea := aabb.GetSurfaceArea()
			childCost2 = (newArea - oldArea) + inheritanceCost
		}

		// Stop if creating a new parent here is cheapest.
		if branchCost < childCost1 && branchCost < childCost2 {
			break
		}

		// Visit the child that has the minimum cost.
		if childCost1 < childCost2 {
			index = child1
		} else {
			index = child2
		}
	}

	return index
}

func (tree *B3DynamicTree) InsertLeaf(leaf int) {
	tree.M_insertionCount++

	if tree.M_root == B3_nullNode {
		tree.M_root = leaf
		tree.M_nodes[tree.M_root].Parent = B3_nullNode
		return
	}

	// Find the best sibling for this leaf.
	leafAABB := tree.M_nodes[leaf].Aabb
	sibling := tree.FindBest(leafAABB)

	// Create a new parent.
	oldParent := tree.M_nodes[sibling].Parent
	newParent := tree.AllocateNode()
	tree.M_nodes[newParent].Parent = oldParent
	tree.M_nodes[newParent].UserData = nil
	tree.M_nodes[newParent].Aabb.CombineTwoInPlace(leafAABB, tree.M_nodes[sibling].Aabb)
	tree.M_nodes[newParent].Height = tree.M_nodes[sibling].Height + 1

	tree.M_nodes[newParent].Child1 = sibling
	tree.M_nodes[newParent].Child2 = leaf
	tree.M_nodes[sibling].Parent = newParent
	tree.M_nodes[leaf].Parent = newParent

	if oldParent != B3_nullNode {
		// The sibling was not the root.
		if tree.M_nodes[oldParent].Child1 == sibling {
			tree.M_nodes[oldParent].Child1 = newParent
		} else {
			tree.M_nodes[oldParent].Child2 = newParent
		}
	} else {
		// The sibling was the root.
		tree.M_root = newParent
	}

	// Walk back up the tree fixing heights and AABBs.
	tree.WalkBackAdjustVolumes(newParent)
}

func (tree *B3DynamicTree) RemoveLeaf(leaf int) {
	if leaf == tree.M_root {
		tree.M_root = B3_nullNode
		return
	}

	parent := tree.M_nodes[leaf].Parent
	grandParent := tree.M_nodes[parent].Parent
	sibling := 0
	if tree.M_nodes[parent].Child1 == leaf {
		sibling = tree.M_nodes[parent].Child2
	} else {
		sibling = tree.M_nodes[parent].Child1
	}

	if grandParent != B3_nullNode {
		// Destroy parent and connect sibling to grandParent.
		if tree.M_nodes[grandParent].Child1 == parent {
			tree.M_nodes[grandParent].Child1 = sibling
		} else {
			tree.M_nodes[grandParent].Child2 = sibling
		}
		tree.M_nodes[sibling].Parent = grandParent
		tree.FreeNode(parent)

		// Adjust ancestor bounds.
		tree.WalkBackAdjustVolumes(grandParent)
	} else {
		tree.M_root = sibling
		tree.M_nodes[sibling].Parent = B3_nullNode
		tree.FreeNode(parent)
	}
}

// Walk the ancestor chain starting at the given branch, refitting AABBs and
// heights up to the root. Every structural change must be followed by this
// so that a branch AABB is always the union of its children.
func (tree *B3DynamicTree) WalkBackAdjustVolumes(node int) {
	for node != B3_nullNode {
		child1 := tree.M_nodes[node].Child1
		child2 := tree.M_nodes[node].Child2

		B3Assert(child1 != B3_nullNode)
		B3Assert(child2 != B3_nullNode)

		tree.M_nodes[node].Height = 1 + MaxInt(tree.M_nodes[child1].Height, tree.M_nodes[child2].Height)
		tree.M_nodes[node].Aabb.CombineTwoInPlace(tree.M_nodes[child1].Aabb, tree.M_nodes[child2].Aabb)

		node = tree.M_nodes[node].Parent
	}
}

/// Query an AABB for overlapping proxies. The callback is invoked for each
/// leaf whose fattened AABB overlaps the given AABB; returning false from the
/// callback terminates the query.
func (tree *B3DynamicTree) Query(queryCallback B3TreeQueryCallback, aabb B3AABB) {
	stack := NewB3GrowableStack()
	stack.Push(tree.M_root)

	for stack.GetCount() > 0 {
		nodeId := stack.Pop()
		if nodeId == B3_nullNode {
			continue
		}

		node := &tree.M_nodes[nodeId]

		if B3TestOverlapBoundingBoxes(node.Aabb, aabb) {
			if node.IsLeaf() {
				proceed := queryCallback(nodeId)
				if proceed == false {
					return
				}
			} else {
				stack.Push(node.Child1)
				stack.Push(node.Child2)
			}
		}
	}
}

/// Ray-cast against the proxies in the tree. This relies on the callback
/// to perform an exact ray-cast in the case were the proxy contains a shape.
/// The callback also performs the any collision filtering. This has performance
/// roughly equal to k * log(n), where k is the number of collisions and n is the
/// number of proxies in the tree. The callback returns the new max fraction
/// (narrowing the remaining parametric range), or 0 to terminate the ray cast.
func (tree B3DynamicTree) RayCast(rayCastCallback B3TreeRayCastCallback, input B3RayCastInput) {

	p1 := input.P1
	p2 := input.P2
	r := p2.Sub(p1)
	B3Assert(r.Dot(r) > 0.0)

	maxFraction := input.MaxFraction

	// Build a bounding box for the segment.
	segmentAABB := MakeB3AABB()
	{
		t := p1.Add(p2.Sub(p1).Mul(maxFraction))
		segmentAABB.LowerBound = B3Vec3Min(p1, t)
		segmentAABB.UpperBound = B3Vec3Max(p1, t)
	}

	stack := NewB3GrowableStack()
	stack.Push(tree.M_root)

	for stack.GetCount() > 0 {
		nodeId := stack.Pop()
		if nodeId == B3_nullNode {
			continue
		}

		node := &tree.M_nodes[nodeId]

		if B3TestOverlapBoundingBoxes(node.Aabb, segmentAABB) == false {
			continue
		}

		subInput := MakeB3RayCastInput()
		subInput.P1 = input.P1
		subInput.P2 = input.P2
		subInput.MaxFraction = maxFraction

		if B3TestOverlapSegmentAABB(node.Aabb, subInput) == false {
			continue
		}

		if node.IsLeaf() {
			value := rayCastCallback(subInput, nodeId)

			if value == 0.0 {
				// The client has terminated the ray cast.
				return
			}

			if value > 0.0 {
				// Update segment bounding box.
				maxFraction = value
				t := p1.Add(p2.Sub(p1).Mul(maxFraction))
				segmentAABB.LowerBound = B3Vec3Min(p1, t)
				segmentAABB.UpperBound = B3Vec3Max(p1, t)
			}
		} else {
			stack.Push(node.Child1)
			stack.Push(node.Child2)
		}
	}
}

func (tree B3DynamicTree) GetHeight() int {
	if tree.M_root == B3_nullNode {
		return 0
	}

	return tree.M_nodes[tree.M_root].Height
}

/// Get the ratio of the sum of the node areas to the root area.
func (tree B3DynamicTree) GetAreaRatio() float64 {
	if tree.M_root == B3_nullNode {
		return 0.0
	}

	root := &tree.M_nodes[tree.M_root]
	rootArea := root.Aabb.GetSurfaceArea()

	totalArea := 0.0
	for i := 0; i < tree.M_nodeCapacity; i++ {
		node := &tree.M_nodes[i]
		if node.Height < 0 {
			// Free node in pool
			continue
		}

		totalArea += node.Aabb.GetSurfaceArea()
	}

	return totalArea / rootArea
}

// Compute the height of a sub-tree.
func (tree B3DynamicTree) ComputeHeight(nodeId int) int {
	B3Assert(0 <= nodeId && nodeId < tree.M_nodeCapacity)
	node := &tree.M_nodes[nodeId]

	if node.IsLeaf() {
		return 0
	}

	height1 := tree.ComputeHeight(node.Child1)
	height2 := tree.ComputeHeight(node.Child2)
	return 1 + MaxInt(height1, height2)
}

func (tree B3DynamicTree) ComputeTotalHeight() int {
	if tree.M_root == B3_nullNode {
		return 0
	}

	return tree.ComputeHeight(tree.M_root)
}

/// Get the maximum height difference between the two children of any branch.
/// There is no incremental rebalancing, so this can grow under adversarial
/// insertion patterns; RebuildBottomUp restores an optimal tree.
func (tree B3DynamicTree) GetMaxBalance() int {
	maxBalance := 0
	for i := 0; i < tree.M_nodeCapacity; i++ {
		node := &tree.M_nodes[i]
		if node.Height <= 1 {
			continue
		}

		B3Assert(node.IsLeaf() == false)

		child1 := node.Child1
		child2 := node.Child2
		balance := AbsInt(tree.M_nodes[child2].Height - tree.M_nodes[child1].Height)
		maxBalance = MaxInt(maxBalance, balance)
	}

	return maxBalance
}

func (tree B3DynamicTree) ValidateStructure(index int) {
	if index == B3_nullNode {
		return
	}

	// The root node has no parent.
	if index == tree.M_root {
		B3Assert(tree.M_nodes[index].Parent == B3_nullNode)
	}

	node := &tree.M_nodes[index]

	child1 := node.Child1
	child2 := node.Child2

	if node.IsLeaf() {
		// Leaf nodes have no children and zero height.
		B3Assert(child1 == B3_nullNode)
		B3Assert(child2 == B3_nullNode)
		B3Assert(node.Height == 0)
		return
	}

	B3Assert(0 <= child1 && child1 < tree.M_nodeCapacity)
	B3Assert(0 <= child2 && child2 < tree.M_nodeCapacity)

	B3Assert(tree.M_nodes[child1].Parent == index)
	B3Assert(tree.M_nodes[child2].Parent == index)

	tree.ValidateStructure(child1)
	tree.ValidateStructure(child2)
}

func (tree B3DynamicTree) ValidateMetrics(index int) {
	if index == B3_nullNode {
		return
	}

	node := &tree.M_nodes[index]

	child1 := node.Child1
	child2 := node.Child2

	if node.IsLeaf() {
		B3Assert(child1 == B3_nullNode)
		B3Assert(child2 == B3_nullNode)
		B3Assert(node.Height == 0)
		return
	}

	B3Assert(0 <= child1 && child1 < tree.M_nodeCapacity)
	B3Assert(0 <= child2 && child2 < tree.M_nodeCapacity)

	height1 := tree.M_nodes[child1].Height
	height2 := tree.M_nodes[child2].Height
	height := 1 + MaxInt(height1, height2)
	B3Assert(node.Height == height)

	// A branch AABB is exactly the union of its children.
	aabb := MakeB3AABB()
	aabb.CombineTwoInPlace(tree.M_nodes[child1].Aabb, tree.M_nodes[child2].Aabb)

	B3Assert(aabb.LowerBound == node.Aabb.LowerBound)
	B3Assert(aabb.UpperBound == node.Aabb.UpperBound)

	tree.ValidateMetrics(child1)
	tree.ValidateMetrics(child2)
}

/// Validate this tree. For testing.
func (tree B3DynamicTree) Validate() {
	tree.ValidateStructure(tree.M_root)
	tree.ValidateMetrics(tree.M_root)

	freeCount := 0
	freeIndex := tree.M_freeList
	for freeIndex != B3_nullNode {
		B3Assert(0 <= freeIndex && freeIndex < tree.M_nodeCapacity)
		freeIndex = tree.M_nodes[freeIndex].Next
		freeCount++
	}

	B3Assert(tree.GetHeight() == tree.ComputeTotalHeight())

	B3Assert(tree.M_nodeCount+freeCount == tree.M_nodeCapacity)
}

/// Build an optimal tree. Very expensive. For testing or to recover tree
/// quality after many incremental updates.
func (tree *B3DynamicTree) RebuildBottomUp() {
	nodes := make([]int, tree.M_nodeCount)
	count := 0

	// Build array of leaves. Free the rest.
	for i := 0; i < tree.M_nodeCapacity; i++ {
		if tree.M_nodes[i].Height < 0 {
			// free node in pool
			continue
		}

		if tree.M_nodes[i].IsLeaf() {
			tree.M_nodes[i].Parent = B3_nullNode
			nodes[count] = i
			count++
		} else {
			tree.FreeNode(i)
		}
	}

	for count > 1 {
		minCost := B3_maxFloat
		iMin := -1
		jMin := -1

		for i := 0; i < count; i++ {
			aabbi := tree.M_nodes[nodes[i]].Aabb

			for j := i + 1; j < count; j++ {
				aabbj := tree.M_nodes[nodes[j]].Aabb
				b := MakeB3AABB()
				b.CombineTwoInPlace(aabbi, aabbj)
				cost := b.GetSurfaceArea()
				if cost < minCost {
					iMin = i
					jMin = j
					minCost = cost
				}
			}
		}

		index1 := nodes[iMin]
		index2 := nodes[jMin]
		child1 := &tree.M_nodes[index1]
		child2 := &tree.M_nodes[index2]

		parentIndex := tree.AllocateNode()
		parent := &tree.M_nodes[parentIndex]
		parent.Child1 = index1
		parent.Child2 = index2
		parent.Height = 1 + MaxInt(child1.Height, child2.Height)
		parent.Aabb.CombineTwoInPlace(child1.Aabb, child2.Aabb)
		parent.Parent = B3_nullNode

		child1.Parent = parentIndex
		child2.Parent = parentIndex

		nodes[jMin] = nodes[count-1]
		nodes[iMin] = parentIndex
		count--
	}

	if count == 1 {
		tree.M_root = nodes[0]
	} else {
		tree.M_root = B3_nullNode
	}

	tree.Validate()
}

/// Shift the world origin. Useful for large worlds.
/// The shift formula is: position -= newOrigin
func (tree *B3DynamicTree) ShiftOrigin(newOrigin B3Vec3) {
	for i := 0; i < tree.M_nodeCapacity; i++ {
		tree.M_nodes[i].Aabb.LowerBound = tree.M_nodes[i].Aabb.LowerBound.Sub(newOrigin)
		tree.M_nodes[i].Aabb.UpperBound = tree.M_nodes[i].Aabb.UpperBound.Sub(newOrigin)
	}
}
