// Package dataset generates deterministic synthetic datasets: clustered
// unit vectors, per-vector metadata and a separate query set.
package dataset

import (
	"fmt"
	"math"

	"github.com/hupe1980/vecgo/testutil"

	"github.com/daryltucker/vecbench/internal/config"
	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/model"
)

// Spread is the gaussian noise added around each cluster centroid.
const Spread = 0.15

// BaseTimestamp is the timestamp of the first metadata record.
const BaseTimestamp = 1600000000

var (
	categories = []string{"tech", "science", "business", "sports", "entertainment"}
	sources    = []string{"web", "api", "upload", "crawl"}
	priorities = []string{"low", "medium", "high", "critical"}
)

// Dataset is a named set of vectors with their metadata and the queries
// run against them.
type Dataset struct {
	Name     string
	Vectors  [][]float32
	Metadata []driver.Metadata
	Queries  [][]float32
}

// Dimension returns the vector dimension, or 0 for an empty dataset.
func (d Dataset) Dimension() int {
	if len(d.Vectors) == 0 {
		return 0
	}
	return len(d.Vectors[0])
}

// SizeBytes is the raw float32 payload size of the vectors.
func (d Dataset) SizeBytes() uint64 {
	return uint64(len(d.Vectors) * d.Dimension() * 4)
}

// SizeMB is SizeBytes in mebibytes.
func (d Dataset) SizeMB() float64 {
	return float64(d.SizeBytes()) / 1024 / 1024
}

// Generate builds the dataset described by spec. The same spec always
// yields the same vectors, metadata and queries.
func Generate(spec config.Dataset) (Dataset, error) {
	if spec.NumVectors <= 0 || spec.Dimension <= 0 || spec.QueryCount <= 0 {
		return Dataset{}, model.InputErrorf("dataset %q: num_vectors, dimension and query_count must be positive", spec.Name)
	}

	clusters := spec.Clusters
	if clusters <= 0 {
		clusters = max(10, spec.NumVectors/1000)
	}

	rng := testutil.NewRNG(spec.Seed)
	vectors := normalize(rng.ClusteredVectors(spec.NumVectors, spec.Dimension, clusters, Spread))
	metadata := generateMetadata(rng, spec.NumVectors)

	// Queries come from their own clusters so they are not copies of
	// inserted points.
	qrng := testutil.NewRNG(spec.Seed + 1)
	queries := normalize(qrng.ClusteredVectors(spec.QueryCount, spec.Dimension, max(5, spec.QueryCount/100), Spread))

	return Dataset{
		Name:     spec.Name,
		Vectors:  vectors,
		Metadata: metadata,
		Queries:  queries,
	}, nil
}

func generateMetadata(rng *testutil.RNG, n int) []driver.Metadata {
	out := make([]driver.Metadata, n)
	for i := range out {
		out[i] = driver.Metadata{
			"id":        fmt.Sprintf("doc_%d", i),
			"category":  categories[rng.Intn(len(categories))],
			"source":    sources[rng.Intn(len(sources))],
			"priority":  priorities[rng.Intn(len(priorities))],
			"timestamp": int64(BaseTimestamp + i*100),
			"score":     float64(rng.Float32()),
		}
	}
	return out
}

// normalize scales every vector to unit length in place.
func normalize(vectors [][]float32) [][]float32 {
	for _, v := range vectors {
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		inv := float32(1 / (math.Sqrt(norm) + 1e-8))
		for j := range v {
			v[j] *= inv
		}
	}
	return vectors
}
