package broadphase

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/geom"
)

func randomBoxes(rng *rand.Rand, n int, spread float64) []geom.AABB {
	boxes := make([]geom.AABB, n)
	for i := range boxes {
		c := mgl64.Vec3{rng.Float64() * spread, rng.Float64() * spread, rng.Float64() * spread}
		h := mgl64.Vec3{0.2 + rng.Float64(), 0.2 + rng.Float64(), 0.2 + rng.Float64()}
		boxes[i] = geom.FromCenter(c, h)
	}
	return boxes
}

func bruteForce(bp *BroadPhase, ids []int) []Pair {
	var out []Pair
	for i, a := range ids {
		ba, _ := bp.FatAABB(a)
		for _, b := range ids[i+1:] {
			bb, _ := bp.FatAABB(b)
			if ba.Overlaps(bb) {
				out = append(out, MakePair(a, b))
			}
		}
	}
	slices.SortFunc(out, func(x, y Pair) int {
		if x.Less(y) {
			return -1
		}
		if y.Less(x) {
			return 1
		}
		return 0
	})
	return out
}

func TestComputeOverlappingPairsMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	boxes := randomBoxes(rng, 120, 20)

	a := arena.New(nil)
	bp := New(a, 0.1, 2)
	ids := make([]int, len(boxes))
	for i, b := range boxes {
		ids[i] = i
		bp.Add(i, b)
	}
	bp.Tree().Validate()

	got := bp.ComputeOverlappingPairs(nil)
	want := bruteForce(bp, ids)
	if !slices.Equal(got, want) {
		t.Fatalf("expected %d pairs, got %d", len(want), len(got))
	}

	for _, p := range got {
		ba, _ := bp.FatAABB(p.A)
		bb, _ := bp.FatAABB(p.B)
		if !ba.Overlaps(bb) {
			t.Errorf("pair %v reported for separated fat boxes", p)
		}
	}
}

func TestPairsIndependentOfInsertionOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	boxes := randomBoxes(rng, 80, 15)

	build := func(order []int) []Pair {
		a := arena.New(nil)
		bp := New(a, 0, 0)
		for _, i := range order {
			bp.Add(i, boxes[i])
		}
		return slices.Clone(bp.ComputeOverlappingPairs(nil))
	}

	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	first := build(order)
	for trial := 0; trial < 5; trial++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		if got := build(order); !slices.Equal(got, first) {
			t.Fatalf("trial %d: pair set changed with insertion order", trial)
		}
	}
}

func TestFilterExcludesPairs(t *testing.T) {
	a := arena.New(nil)
	bp := New(a, 0, 0)
	for i := 0; i < 4; i++ {
		bp.Add(i, geom.FromCenter(mgl64.Vec3{float64(i) * 0.5, 0, 0}, mgl64.Vec3{1, 1, 1}))
	}
	pairs := bp.ComputeOverlappingPairs(func(x, y int) bool { return x%2 == y%2 })
	for _, p := range pairs {
		if p.A%2 != p.B%2 {
			t.Errorf("filtered pair %v was reported", p)
		}
	}
	if len(pairs) != 2 {
		t.Errorf("expected 2 pairs, got %d", len(pairs))
	}
}

func TestMoveProxyKeepsFatBoxForSmallMotion(t *testing.T) {
	tree := NewTree(0.1, 1)
	box := geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{0.5, 0.5, 0.5})
	id := tree.CreateProxy(box, 0)

	small := geom.FromCenter(mgl64.Vec3{0.05, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	if tree.MoveProxy(id, small, mgl64.Vec3{0.05, 0, 0}) {
		t.Error("expected small motion to stay inside the fat box")
	}

	far := geom.FromCenter(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	if !tree.MoveProxy(id, far, mgl64.Vec3{1, 0, 0}) {
		t.Fatal("expected large motion to reinsert the leaf")
	}
	fat := tree.FatAABB(id)
	if !fat.Contains(far) {
		t.Error("expected new fat box to contain the tight box")
	}
	if fat.Max[0] < far.Max[0]+1 {
		t.Errorf("expected fat box swept by displacement, got max x %f", fat.Max[0])
	}
}

func TestMoveProxyScalesDisplacementOnce(t *testing.T) {
	tree := NewTree(0.1, 2)
	id := tree.CreateProxy(geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{0.5, 0.5, 0.5}), 0)

	far := geom.FromCenter(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	tree.MoveProxy(id, far, mgl64.Vec3{0.25, 0, -0.5})
	fat := tree.FatAABB(id)
	want := geom.AABB{
		Min: mgl64.Vec3{far.Min[0] - 0.1, far.Min[1] - 0.1, far.Min[2] - 0.1 - 1},
		Max: mgl64.Vec3{far.Max[0] + 0.1 + 0.5, far.Max[1] + 0.1, far.Max[2] + 0.1},
	}
	if !fat.Min.ApproxEqual(want.Min) || !fat.Max.ApproxEqual(want.Max) {
		t.Errorf("expected fat box %v, got %v", want, fat)
	}
}

func TestRefitDropsSweptMotion(t *testing.T) {
	tree := NewTree(0.1, 2)
	a := tree.CreateProxy(geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{0.5, 0.5, 0.5}), 0)
	tree.CreateProxy(geom.FromCenter(mgl64.Vec3{4, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5}), 1)

	box := geom.FromCenter(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	tree.MoveProxy(a, box, mgl64.Vec3{2, 0, 0})
	if !tree.Refit(a, box) {
		t.Fatal("expected refit to replace the swept box")
	}
	if got, want := tree.FatAABB(a), box.Expand(0.1); got != want {
		t.Errorf("expected fat box %v, got %v", want, got)
	}
	if tree.Refit(a, box) {
		t.Error("expected a second refit to leave the tree alone")
	}
	tree.Validate()
}

func TestQueryFromInsideQuery(t *testing.T) {
	tree := NewTree(0, 0)
	for i := 0; i < 32; i++ {
		tree.CreateProxy(geom.FromCenter(mgl64.Vec3{float64(i) * 3, 0, 0}, mgl64.Vec3{1, 1, 1}), i)
	}
	all := geom.FromCenter(mgl64.Vec3{48, 0, 0}, mgl64.Vec3{100, 5, 5})

	outer, inner := 0, 0
	tree.Query(all, func(id int) bool {
		outer++
		tree.Query(tree.FatAABB(id), func(int) bool {
			inner++
			return true
		})
		return true
	})
	if outer != 32 {
		t.Errorf("expected the outer query to visit 32 leaves, got %d", outer)
	}
	if inner != 32 {
		t.Errorf("expected each inner query to find only its own leaf, got %d hits", inner)
	}

	hits := 0
	tree.RayCast(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}, 200, func(id int, maxT float64) float64 {
		hits++
		tree.Query(tree.FatAABB(id), func(int) bool { return true })
		return -1
	})
	if hits != 32 {
		t.Errorf("expected the ray to visit 32 leaves, got %d", hits)
	}
}

func TestTreeStaysValidUnderChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tree := NewTree(0.05, 1)
	var ids []int
	for i := 0; i < 200; i++ {
		ids = append(ids, tree.CreateProxy(randomBoxes(rng, 1, 30)[0], i))
	}
	for step := 0; step < 300; step++ {
		i := rng.Intn(len(ids))
		switch rng.Intn(3) {
		case 0:
			tree.DestroyProxy(ids[i])
			ids[i] = tree.CreateProxy(randomBoxes(rng, 1, 30)[0], i)
		default:
			tree.MoveProxy(ids[i], randomBoxes(rng, 1, 30)[0], mgl64.Vec3{rng.Float64(), 0, 0})
		}
	}
	tree.Validate()
	if tree.Len() != len(ids) {
		t.Errorf("expected %d leaves, got %d", len(ids), tree.Len())
	}
	// a balanced tree of 200 leaves stays far below a degenerate list
	if h := tree.Height(); h > 20 {
		t.Errorf("expected balanced height, got %d", h)
	}
}

func TestValidatePanicsOnBrokenContainment(t *testing.T) {
	tree := NewTree(0, 0)
	tree.CreateProxy(geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}), 0)
	tree.CreateProxy(geom.FromCenter(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{1, 1, 1}), 1)
	tree.nodes[tree.root].box = geom.FromCenter(mgl64.Vec3{}, mgl64.Vec3{0.1, 0.1, 0.1})

	defer func() {
		if recover() == nil {
			t.Error("expected Validate to panic")
		}
	}()
	tree.Validate()
}

func TestRayCastVisitsHitLeaves(t *testing.T) {
	a := arena.New(nil)
	bp := New(a, 0, 0)
	for i := 0; i < 5; i++ {
		bp.Add(i, geom.FromCenter(mgl64.Vec3{float64(i) * 3, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5}))
	}
	bp.Add(9, geom.FromCenter(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0.5, 0.5, 0.5}))

	var hit []int
	bp.RayCast(mgl64.Vec3{-2, 0, 0}, mgl64.Vec3{1, 0, 0}, 100, func(c int, maxT float64) float64 {
		hit = append(hit, c)
		return -1
	})
	slices.Sort(hit)
	if !slices.Equal(hit, []int{0, 1, 2, 3, 4}) {
		t.Errorf("expected leaves 0..4, got %v", hit)
	}
}

func TestQueryAABB(t *testing.T) {
	a := arena.New(nil)
	bp := New(a, 0, 0)
	bp.Add(1, geom.FromCenter(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}))
	bp.Add(2, geom.FromCenter(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{1, 1, 1}))

	var found []int
	bp.QueryAABB(geom.FromCenter(mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{1, 1, 1}), func(c int) bool {
		found = append(found, c)
		return true
	})
	if !slices.Equal(found, []int{1}) {
		t.Errorf("expected [1], got %v", found)
	}
}

func BenchmarkComputeOverlappingPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	a := arena.New(nil)
	bp := New(a, 0.1, 2)
	for i, box := range randomBoxes(rng, 1000, 60) {
		bp.Add(i, box)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Reset()
		bp.ComputeOverlappingPairs(nil)
	}
}
