package registry

import (
	"sort"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/pose-guard/internal/config"
	"github.com/kozaktomas/pose-guard/internal/facematch"
)

// HNSW graph parameters; the roster is small so defaults favour recall.
const (
	indexMaxNeighbors = 16
	indexEfSearch     = 64
)

// Match is a roster entry returned by Index.Nearest.
type Match struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Index answers nearest-target queries over the enrolled embeddings.
type Index struct {
	graph    *hnsw.Graph[string]
	distance facematch.DistanceFunc
	dims     int
	size     int
}

// NewIndex builds an index over targets using the given metric.
// Targets whose embedding length differs from the first one are skipped.
func NewIndex(metric string, targets []*Target) *Index {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	if metric == config.MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}

	idx := &Index{graph: g, distance: facematch.DistanceFor(metric)}
	for _, t := range targets {
		if len(t.Embedding) == 0 {
			continue
		}
		if idx.dims == 0 {
			idx.dims = len(t.Embedding)
		}
		if len(t.Embedding) != idx.dims {
			continue
		}
		g.Add(hnsw.MakeNode(t.Name, t.Embedding))
		idx.size++
	}
	return idx
}

// Len returns the number of indexed targets.
func (i *Index) Len() int {
	return i.size
}

// Nearest returns up to k targets ordered by increasing distance to query.
func (i *Index) Nearest(query []float32, k int) []Match {
	if i.size == 0 || k <= 0 || len(query) != i.dims {
		return nil
	}

	nodes := i.graph.Search(query, k)
	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, Match{Name: n.Key, Distance: i.distance(query, n.Value)})
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Distance < matches[b].Distance })
	return matches
}
