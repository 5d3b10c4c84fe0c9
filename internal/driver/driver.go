/*
PURPOSE:
  Defines the capability contract every backend adapter implements.
  The orchestrator depends on this interface and nothing else.

REQUIREMENTS:
  User-specified:
  - Six operations: connect, disconnect, create/delete collection,
    insert, search.

  Implementation-discovered:
  - Every call takes a context so the orchestrator can attach a deadline.
  - Adapters classify their own failures (connection, collection,
    operation) so the core never has to parse backend error strings.

ARCHITECTURE INTEGRATION:
  - Implemented by: internal/driver/{qdrant,weaviate,vecgo,drivertest}
  - Consumed by: internal/engine
  - Constructed by: internal/backend

ERROR HANDLING:
  - Connect: ConnectionError.
  - CreateCollection / DeleteCollection: CollectionError; a missing
    collection on delete is NOT an error.
  - InsertVectors / SearchVectors: OperationError.

IMPLEMENTATION RULES:
  - Disconnect must be safe without a prior successful Connect.
  - SearchVectors must be safe for concurrent use once connected.
    InsertVectors and CreateCollection are never called concurrently.
  - No retries in adapters unless the backend client does it internally.

USAGE:
  var d driver.Driver = qdrant.New(cfg)
  err := d.Connect(ctx)

SELF-HEALING INSTRUCTIONS:
  - New backend: add a package under internal/driver and register it in
    internal/backend/factory.go.

RELATED FILES:
  - internal/backend/factory.go
  - internal/engine/orchestrator.go

MAINTENANCE:
  - Keep the interface minimal. The core assumes no other capability.
*/

package driver

import (
	"context"
)

// Metadata is an optional per-vector key/value record.
type Metadata map[string]any

// Match is one nearest-neighbour hit returned by a search.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Driver is the capability contract of a vector search backend.
type Driver interface {
	// Name identifies the backend in results and logs.
	Name() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// CreateCollection creates the named collection, replacing any
	// existing one.
	CreateCollection(ctx context.Context, name string, dimension int) error
	// DeleteCollection removes the collection. Not-found is swallowed.
	DeleteCollection(ctx context.Context, name string) error

	// InsertVectors inserts every vector exactly once, in chunks of at most
	// batchSize. metadata is either nil or parallel to vectors.
	InsertVectors(ctx context.Context, collection string, vectors [][]float32, metadata []Metadata, batchSize int) error

	// SearchVectors returns up to topK matches for each query, in query order.
	SearchVectors(ctx context.Context, collection string, queries [][]float32, topK int) ([][]Match, error)
}

// Chunk splits [0,n) into consecutive half-open ranges of at most size
// elements and calls fn for each one. It stops at the first error.
func Chunk(n, size int, fn func(start, end int) error) error {
	if size <= 0 {
		size = n
	}
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// MetadataAt returns md[i], or nil when md is shorter than i+1.
func MetadataAt(md []Metadata, i int) Metadata {
	if i < len(md) {
		return md[i]
	}
	return nil
}
