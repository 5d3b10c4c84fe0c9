// Package vecgo adapts the embedded vecgo engine to driver.Driver. Each
// collection is an engine directory below the configured path.
package vecgo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hupe1980/vecgo"
	"github.com/hupe1980/vecgo/distance"
	"github.com/hupe1980/vecgo/metadata"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/model"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "./data/vecgo"

// Config configures the embedded backend.
type Config struct {
	Name   string
	Path   string
	Metric string
}

// Driver runs vecgo in-process. SearchVectors may be called concurrently;
// all other calls must be serialized by the caller.
type Driver struct {
	name   string
	path   string
	metric distance.Metric

	mu          sync.RWMutex
	connected   bool
	collections map[string]*vecgo.DB
}

var _ driver.Driver = (*Driver)(nil)

// New validates cfg and returns an unconnected Driver.
func New(cfg Config) (*Driver, error) {
	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Name == "" {
		cfg.Name = "vecgo"
	}
	return &Driver{
		name:        cfg.Name,
		path:        cfg.Path,
		metric:      metric,
		collections: map[string]*vecgo.DB{},
	}, nil
}

// ParseMetric maps a metric name to a vecgo metric. Empty means l2.
func ParseMetric(s string) (distance.Metric, error) {
	switch strings.ToLower(s) {
	case "", "l2", "euclidean":
		return distance.MetricL2, nil
	case "cosine":
		return distance.MetricCosine, nil
	case "dot", "ip":
		return distance.MetricDot, nil
	default:
		return 0, model.InputErrorf("vecgo: unknown metric %q", s)
	}
}

func (d *Driver) Name() string { return d.name }

func (d *Driver) Connect(ctx context.Context) error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return driver.ConnectionError(err, "vecgo: prepare %s", d.path)
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

// Disconnect closes every open engine. Data stays on disk until the
// collection is deleted.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs error
	for name, eng := range d.collections {
		if err := eng.Close(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "close %s", name))
		}
		delete(d.collections, name)
	}
	d.connected = false
	return errs
}

func (d *Driver) dir(name string) string {
	return filepath.Join(d.path, name)
}

// CreateCollection replaces any existing collection with an empty one.
func (d *Driver) CreateCollection(ctx context.Context, name string, dimension int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return driver.NotConnected(d.name)
	}

	if err := d.dropLocked(name); err != nil {
		return driver.CollectionError(err, "vecgo: replace %s", name)
	}
	eng, err := vecgo.Open(ctx, vecgo.Local(d.dir(name)), vecgo.Create(dimension, d.metric))
	if err != nil {
		return driver.CollectionError(err, "vecgo: create %s", name)
	}
	d.collections[name] = eng
	return nil
}

func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dropLocked(name); err != nil {
		return driver.CollectionError(err, "vecgo: delete %s", name)
	}
	return nil
}

func (d *Driver) dropLocked(name string) error {
	if eng, ok := d.collections[name]; ok {
		delete(d.collections, name)
		if err := eng.Close(); err != nil {
			return err
		}
	}
	return os.RemoveAll(d.dir(name))
}

func (d *Driver) engine(name string) (*vecgo.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.connected {
		return nil, driver.NotConnected(d.name)
	}
	eng, ok := d.collections[name]
	if !ok {
		return nil, driver.OperationError(model.ErrNotFound, "vecgo: collection %s", name)
	}
	return eng, nil
}

// InsertVectors writes batches of batchSize vectors and commits once at
// the end.
func (d *Driver) InsertVectors(ctx context.Context, collection string, vectors [][]float32, md []driver.Metadata, batchSize int) error {
	eng, err := d.engine(collection)
	if err != nil {
		return err
	}

	err = driver.Chunk(len(vectors), batchSize, func(start, end int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var docs []metadata.Document
		if md != nil {
			docs = make([]metadata.Document, 0, end-start)
			for i := start; i < end; i++ {
				docs = append(docs, Document(md[i]))
			}
		}
		if _, err := eng.BatchInsert(ctx, vectors[start:end], docs, nil); err != nil {
			return driver.OperationError(err, "vecgo: insert rows %d-%d into %s", start, end, collection)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := eng.Commit(ctx); err != nil {
		return driver.OperationError(err, "vecgo: commit %s", collection)
	}
	return nil
}

func (d *Driver) SearchVectors(ctx context.Context, collection string, queries [][]float32, topK int) ([][]driver.Match, error) {
	eng, err := d.engine(collection)
	if err != nil {
		return nil, err
	}

	out := make([][]driver.Match, len(queries))
	for i, q := range queries {
		hits, err := eng.Search(ctx, q, topK, vecgo.WithoutData())
		if err != nil {
			return nil, driver.OperationError(err, "vecgo: search %s", collection)
		}
		matches := make([]driver.Match, len(hits))
		for j, h := range hits {
			matches[j] = driver.Match{ID: fmt.Sprintf("%d", h.ID), Score: h.Score}
		}
		out[i] = matches
	}
	return out, nil
}

// Document converts a metadata record to vecgo's typed document. Values of
// unsupported types are stored as their string form.
func Document(md driver.Metadata) metadata.Document {
	if md == nil {
		return metadata.Document{}
	}
	doc := make(metadata.Document, len(md))
	for k, v := range md {
		switch x := v.(type) {
		case string:
			doc[k] = metadata.String(x)
		case bool:
			doc[k] = metadata.Bool(x)
		case int:
			doc[k] = metadata.Int(int64(x))
		case int32:
			doc[k] = metadata.Int(int64(x))
		case int64:
			doc[k] = metadata.Int(x)
		case float32:
			doc[k] = metadata.Float(float64(x))
		case float64:
			doc[k] = metadata.Float(x)
		default:
			doc[k] = metadata.String(fmt.Sprint(x))
		}
	}
	return doc
}
