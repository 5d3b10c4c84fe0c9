// Package drivertest provides an in-memory driver.Driver with call
// accounting and injectable failures, for exercising the orchestrator
// without a real backend.
package drivertest

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/model"
)

// Driver is a brute-force in-memory backend. It is safe for concurrent
// SearchVectors calls.
type Driver struct {
	name string

	// Failure injection. A non-nil error is returned from the call.
	ConnectErr error
	CreateErr  error
	DeleteErr  error
	InsertErr  error
	SearchErr  error
	// FailSearchAfter makes the n-th and later SearchVectors calls fail
	// with SearchErr (or a generic error). Zero disables it.
	FailSearchAfter int
	// SearchDelay is slept inside every SearchVectors call, honouring ctx.
	SearchDelay time.Duration

	mu          sync.Mutex
	connected   bool
	collections map[string]*collection
	calls       Calls
	batches     []int
}

// Calls counts driver invocations.
type Calls struct {
	Connect, Disconnect, Create, Delete, Insert, Search int
	// SearchQueries is the total number of query vectors searched.
	SearchQueries int
	// InsertedVectors is the total number of vectors inserted.
	InsertedVectors int
}

type collection struct {
	dim     int
	vectors [][]float32
	meta    []driver.Metadata
}

var _ driver.Driver = (*Driver)(nil)

// New returns an empty Driver reporting under name.
func New(name string) *Driver {
	return &Driver{name: name, collections: map[string]*collection{}}
}

func (d *Driver) Name() string { return d.name }

// Calls returns a snapshot of the call counters.
func (d *Driver) Calls() Calls {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Batches returns the size of every insert chunk, in order.
func (d *Driver) Batches() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.batches...)
}

// Connected reports whether Connect succeeded and Disconnect has not run.
func (d *Driver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Size returns the number of vectors in a collection, or -1 if absent.
func (d *Driver) Size(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		return -1
	}
	return len(c.vectors)
}

func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Connect++
	if d.ConnectErr != nil {
		return driver.ConnectionError(d.ConnectErr, "connect %s", d.name)
	}
	d.connected = true
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Disconnect++
	d.connected = false
	return nil
}

func (d *Driver) CreateCollection(ctx context.Context, name string, dimension int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Create++
	if !d.connected {
		return driver.NotConnected(d.name)
	}
	if d.CreateErr != nil {
		return driver.CollectionError(d.CreateErr, "create %s", name)
	}
	d.collections[name] = &collection{dim: dimension}
	return nil
}

func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Delete++
	if d.DeleteErr != nil {
		return driver.CollectionError(d.DeleteErr, "delete %s", name)
	}
	delete(d.collections, name)
	return nil
}

func (d *Driver) InsertVectors(ctx context.Context, name string, vectors [][]float32, metadata []driver.Metadata, batchSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Insert++
	if !d.connected {
		return driver.NotConnected(d.name)
	}
	if d.InsertErr != nil {
		return driver.OperationError(d.InsertErr, "insert into %s", name)
	}
	c, ok := d.collections[name]
	if !ok {
		return driver.OperationError(model.ErrNotFound, "insert into %s", name)
	}
	return driver.Chunk(len(vectors), batchSize, func(start, end int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := start; i < end; i++ {
			if len(vectors[i]) != c.dim {
				return driver.OperationError(errors.Newf("dimension %d, want %d", len(vectors[i]), c.dim), "insert into %s", name)
			}
			c.vectors = append(c.vectors, vectors[i])
			c.meta = append(c.meta, driver.MetadataAt(metadata, i))
		}
		d.batches = append(d.batches, end-start)
		d.calls.InsertedVectors += end - start
		return nil
	})
}

func (d *Driver) SearchVectors(ctx context.Context, name string, queries [][]float32, topK int) ([][]driver.Match, error) {
	d.mu.Lock()
	d.calls.Search++
	d.calls.SearchQueries += len(queries)
	n := d.calls.Search
	connected := d.connected
	c := d.collections[name]
	d.mu.Unlock()

	if !connected {
		return nil, driver.NotConnected(d.name)
	}
	if d.SearchDelay > 0 {
		select {
		case <-time.After(d.SearchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.SearchErr != nil && (d.FailSearchAfter == 0 || n >= d.FailSearchAfter) {
		return nil, driver.OperationError(d.SearchErr, "search %s", name)
	}
	if c == nil {
		return nil, driver.OperationError(model.ErrNotFound, "search %s", name)
	}

	d.mu.Lock()
	vectors, meta := c.vectors, c.meta
	d.mu.Unlock()

	out := make([][]driver.Match, len(queries))
	for qi, q := range queries {
		out[qi] = bruteForce(vectors, meta, q, topK)
	}
	return out, nil
}

func bruteForce(vectors [][]float32, meta []driver.Metadata, q []float32, k int) []driver.Match {
	matches := make([]driver.Match, 0, len(vectors))
	for i, v := range vectors {
		matches = append(matches, driver.Match{
			ID:       strconv.Itoa(i),
			Score:    l2(v, q),
			Metadata: meta[i],
		})
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score < matches[b].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func l2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		if i >= len(b) {
			break
		}
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
