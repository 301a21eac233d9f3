package memindex

import (
	"math/bits"
	"math/rand"
	"sort"
)

// Default approximate-strategy configuration.
const (
	// DefaultPlanes is the number of random hyperplanes. 2^planes
	// buckets partition the sphere.
	DefaultPlanes = 12

	// DefaultProbes is how many buckets a query visits, nearest
	// signature first. Raising it trades speed for recall.
	DefaultProbes = 64

	// planeSeed fixes the hyperplane layout so bucket assignment is
	// reproducible across runs.
	planeSeed = 0x7a171e9
)

// hyperplanes is a random-hyperplane bucketing strategy: each entry is
// signed against a fixed set of random hyperplanes and stored under
// the resulting bit signature. Nearby vectors tend to share signature
// bits, so probing buckets in order of Hamming distance from the query
// signature visits the most promising candidates first.
type hyperplanes struct {
	planes  [][]float32
	probes  int
	buckets map[uint64][]*entry
}

func newHyperplanes(dim, planes, probes int) *hyperplanes {
	if planes <= 0 || planes > 30 {
		planes = DefaultPlanes
	}
	if probes <= 0 {
		probes = DefaultProbes
	}

	rng := rand.New(rand.NewSource(planeSeed))
	h := &hyperplanes{
		planes:  make([][]float32, planes),
		probes:  probes,
		buckets: make(map[uint64][]*entry),
	}
	for i := range h.planes {
		p := make([]float32, dim)
		for j := range p {
			p[j] = float32(rng.NormFloat64())
		}
		h.planes[i] = p
	}
	return h
}

// signature computes the bucket key for a vector.
func (h *hyperplanes) signature(v []float32) uint64 {
	var sig uint64
	for i, p := range h.planes {
		if dot(v, p) >= 0 {
			sig |= 1 << uint(i)
		}
	}
	return sig
}

// add inserts an entry into its bucket.
func (h *hyperplanes) add(e *entry) {
	sig := h.signature(e.vector)
	h.buckets[sig] = append(h.buckets[sig], e)
}

// remove drops an entry from its bucket.
func (h *hyperplanes) remove(e *entry) {
	sig := h.signature(e.vector)
	bucket := h.buckets[sig]
	for i, cur := range bucket {
		if cur == e {
			bucket[i] = bucket[len(bucket)-1]
			h.buckets[sig] = bucket[:len(bucket)-1]
			return
		}
	}
}

// candidates returns entries from the probe-budget nearest buckets,
// ordered by signature distance from the query.
func (h *hyperplanes) candidates(query []float32) []*entry {
	qsig := h.signature(query)

	type bucketDist struct {
		sig  uint64
		dist int
	}
	order := make([]bucketDist, 0, len(h.buckets))
	for sig := range h.buckets {
		order = append(order, bucketDist{sig: sig, dist: bits.OnesCount64(sig ^ qsig)})
	}
	// Sort by Hamming distance, then signature for determinism.
	sort.Slice(order, func(i, j int) bool {
		if order[i].dist != order[j].dist {
			return order[i].dist < order[j].dist
		}
		return order[i].sig < order[j].sig
	})

	probes := h.probes
	if probes > len(order) {
		probes = len(order)
	}

	var out []*entry
	for _, b := range order[:probes] {
		out = append(out, h.buckets[b.sig]...)
	}
	return out
}
