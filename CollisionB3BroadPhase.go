package bounce3

import (
	"sort"
)

type B3BroadPhaseAddPairCallback func(userDataA interface{}, userDataB interface{})

type B3Pair struct {
	ProxyIdA int
	ProxyIdB int
}

const E_nullProxy = -1

/// The broad-phase is used for computing pairs and performing volume queries
/// and ray casts. This broad-phase does not persist pairs. Instead, this
/// reports potentially new pairs. It is up to the client to consume the new
/// pairs and to track subsequent overlap.
type B3BroadPhase struct {
	M_tree B3DynamicTree

	M_proxyCount int

	M_moveBuffer   []int
	M_moveCapacity int
	M_moveCount    int

	M_pairBuffer   []B3Pair
	M_pairCapacity int
	M_pairCount    int

	M_queryProxyId int
}

type PairByLessThan []B3Pair

func (a PairByLessThan) Len() int      { return len(a) }
func (a PairByLessThan) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a PairByLessThan) Less(i, j int) bool {
	return B3PairLessThan(a[i], a[j])
}

/// This is used to sort pairs.
func B3PairLessThan(pair1 B3Pair, pair2 B3Pair) bool {
	if pair1.ProxyIdA < pair2.ProxyIdA {
		return true
	}

	if pair1.ProxyIdA == pair2.ProxyIdA {
		return pair1.ProxyIdB < pair2.ProxyIdB
	}

	return false
}

func MakeB3BroadPhase() B3BroadPhase {

	pairCapacity := 16
	moveCapacity := 16

	tree := MakeB3DynamicTree()

	return B3BroadPhase{
		M_tree:       tree,
		M_proxyCount: 0,

		M_pairCapacity: pairCapacity,
		M_pairCount:    0,
		M_pairBuffer:   make([]B3Pair, pairCapacity),

		M_moveCapacity: moveCapacity,
		M_moveCount:    0,
		M_moveBuffer:   make([]int, moveCapacity),
	}
}

func NewB3BroadPhase() *B3BroadPhase {
	res := MakeB3BroadPhase()
	return &res
}

func (bp B3BroadPhase) GetUserData(proxyId int) interface{} {
	return bp.M_tree.GetUserData(proxyId)
}

/// Test overlap of fat AABBs.
func (bp B3BroadPhase) TestOverlap(proxyIdA int, proxyIdB int) bool {
	return B3TestOverlapBoundingBoxes(
		bp.M_tree.GetFatAABB(proxyIdA),
		bp.M_tree.GetFatAABB(proxyIdB),
	)
}

func (bp B3BroadPhase) GetFatAABB(proxyId int) B3AABB {
	return bp.M_tree.GetFatAABB(proxyId)
}

func (bp B3BroadPhase) GetProxyCount() int {
	return bp.M_proxyCount
}

func (bp B3BroadPhase) GetTreeHeight() int {
	return bp.M_tree.GetHeight()
}

func (bp B3BroadPhase) GetTreeBalance() int {
	return bp.M_tree.GetMaxBalance()
}

func (bp B3BroadPhase) GetTreeQuality() float64 {
	return bp.M_tree.GetAreaRatio()
}

/// Create a proxy with an initial AABB. Pairs are not reported until
/// UpdatePairs is called.
func (bp *B3BroadPhase) CreateProxy(aabb B3AABB, userData interface{}) int {
	proxyId := bp.M_tree.InsertNode(aabb, userData)
	bp.M_proxyCount++
	bp.BufferMove(proxyId)
	return proxyId
}

/// Destroy a proxy. It is up to the client to remove any pairs.
func (bp *B3BroadPhase) DestroyProxy(proxyId int) {
	bp.UnBufferMove(proxyId)
	bp.M_proxyCount--
	bp.M_tree.RemoveNode(proxyId)
}

/// Update a proxy with a new AABB. The tree is only touched when the new
/// AABB has escaped the proxy's stored fat AABB; otherwise the fattening
/// margin absorbs the motion.
func (bp *B3BroadPhase) MoveProxy(proxyId int, aabb B3AABB, displacement B3Vec3) {
	if bp.M_tree.GetFatAABB(proxyId).Contains(aabb) {
		return
	}

	bp.M_tree.UpdateNode(proxyId, aabb, displacement)
	bp.BufferMove(proxyId)
}

/// Trigger a re-pairing for the proxy on the next UpdatePairs call.
func (bp *B3BroadPhase) TouchProxy(proxyId int) {
	bp.BufferMove(proxyId)
}

func (bp *B3BroadPhase) BufferMove(proxyId int) {
	if bp.M_moveCount == bp.M_moveCapacity {
		bp.M_moveBuffer = append(bp.M_moveBuffer, make([]int, bp.M_moveCapacity)...)
		bp.M_moveCapacity *= 2
	}

	bp.M_moveBuffer[bp.M_moveCount] = proxyId
	bp.M_moveCount++
}

func (bp *B3BroadPhase) UnBufferMove(proxyId int) {
	for i := 0; i < bp.M_moveCount; i++ {
		if bp.M_moveBuffer[i] == proxyId {
			bp.M_moveBuffer[i] = E_nullProxy
		}
	}
}

// This is called from B3DynamicTree.Query when we are gathering pairs.
func (bp *B3BroadPhase) QueryCallback(proxyId int) bool {

	// A proxy cannot form a pair with itself.
	if proxyId == bp.M_queryProxyId {
		return true
	}

	// Grow the pair buffer as needed.
	if bp.M_pairCount == bp.M_pairCapacity {
		bp.M_pairBuffer = append(bp.M_pairBuffer, make([]B3Pair, bp.M_pairCapacity)...)
		bp.M_pairCapacity *= 2
	}

	bp.M_pairBuffer[bp.M_pairCount].ProxyIdA = MinInt(proxyId, bp.M_queryProxyId)
	bp.M_pairBuffer[bp.M_pairCount].ProxyIdB = MaxInt(proxyId, bp.M_queryProxyId)
	bp.M_pairCount++

	return true
}

/// Update the pairs. This results in pair callbacks. This can only add pairs.
func (bp *B3BroadPhase) UpdatePairs(addPairCallback B3BroadPhaseAddPairCallback) {
	// Reset pair buffer
	bp.M_pairCount = 0

	// Perform tree queries for all moving proxies.
	for i := 0; i < bp.M_moveCount; i++ {
		bp.M_queryProxyId = bp.M_moveBuffer[i]
		if bp.M_queryProxyId == E_nullProxy {
			continue
		}

		// We have to query the tree with the fat AABB so that
		// we don't fail to create a pair that may touch later.
		fatAABB := bp.M_tree.GetFatAABB(bp.M_queryProxyId)

		// Query tree, create pairs and add them pair buffer.
		bp.M_tree.Query(bp.QueryCallback, fatAABB)
	}

	// Reset move buffer
	bp.M_moveCount = 0

	// Sort the pair buffer to expose duplicates.
	sort.Sort(PairByLessThan(bp.M_pairBuffer[:bp.M_pairCount]))

	// Send the pairs back to the client.
	i := 0
	for i < bp.M_pairCount {
		primaryPair := bp.M_pairBuffer[i]
		userDataA := bp.M_tree.GetUserData(primaryPair.ProxyIdA)
		userDataB := bp.M_tree.GetUserData(primaryPair.ProxyIdB)

		addPairCallback(userDataA, userDataB)
		i++

		// Skip any duplicate pairs.
		for i < bp.M_pairCount {
			pair := bp.M_pairBuffer[i]
			if pair.ProxyIdA != primaryPair.ProxyIdA || pair.ProxyIdB != primaryPair.ProxyIdB {
				break
			}
			i++
		}
	}
}

func (bp *B3BroadPhase) Query(callback B3TreeQueryCallback, aabb B3AABB) {
	bp.M_tree.Query(callback, aabb)
}

func (bp *B3BroadPhase) RayCast(callback B3TreeRayCastCallback, input B3RayCastInput) {
	bp.M_tree.RayCast(callback, input)
}

func (bp *B3BroadPhase) ShiftOrigin(newOrigin B3Vec3) {
	bp.M_tree.ShiftOrigin(newOrigin)
}
