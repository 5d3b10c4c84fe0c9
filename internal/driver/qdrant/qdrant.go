/*
PURPOSE:
  Qdrant adapter for driver.Driver over the native gRPC API.

REQUIREMENTS:
  User-specified:
  - Collections use dense vectors with a configurable distance
    (cosine by default).
  - Points are upserted in batches of batchSize with numeric IDs 0..n-1
    and the metadata record as payload.

  Implementation-discovered:
  - Upserts wait for the write to be applied so the insert timing covers
    indexing, not just enqueueing.
  - A configured collection name overrides the one chosen by the caller.

ARCHITECTURE INTEGRATION:
  - Built by: internal/backend/factory.go
  - Dependencies: github.com/qdrant/go-client, google.golang.org/grpc

ERROR HANDLING:
  - Dial failures are ConnectionError.
  - Create/Delete failures are CollectionError.
  - Upsert/Search failures are OperationError.

IMPLEMENTATION RULES:
  - One grpc.ClientConn per Driver; the generated clients are safe for
    concurrent use so SearchVectors may run from many goroutines.

USAGE:
  d, _ := qdrant.New(qdrant.Config{Host: "localhost", Port: 6334})

SELF-HEALING INSTRUCTIONS:
  - "connection refused" on 6333 means the REST port was configured;
    this driver needs the gRPC port (6334).

RELATED FILES:
  - internal/driver/driver.go

MAINTENANCE:
  - Keep the distance table in sync with Qdrant's Distance enum.
*/

package qdrant

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	qpb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/model"
)

// DefaultPort is Qdrant's gRPC port.
const DefaultPort = 6334

// DialTimeout bounds Connect when the context has no deadline.
const DialTimeout = 10 * time.Second

// Config configures the Qdrant backend.
type Config struct {
	Name       string
	Host       string
	Port       int
	APIKey     string
	TLS        bool
	Metric     string
	Collection string
}

// Driver talks to a Qdrant server.
type Driver struct {
	cfg      Config
	distance qpb.Distance
	wait     bool

	mu          sync.RWMutex
	conn        *grpc.ClientConn
	collections qpb.CollectionsClient
	points      qpb.PointsClient
}

var _ driver.Driver = (*Driver)(nil)

// New validates cfg and returns an unconnected Driver.
func New(cfg Config) (*Driver, error) {
	dist, err := ParseDistance(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Name == "" {
		cfg.Name = "qdrant"
	}
	return &Driver{cfg: cfg, distance: dist, wait: true}, nil
}

// ParseDistance maps a metric name to Qdrant's distance enum. Empty means
// cosine.
func ParseDistance(s string) (qpb.Distance, error) {
	switch strings.ToLower(s) {
	case "", "cosine":
		return qpb.Distance_Cosine, nil
	case "l2", "euclid", "euclidean":
		return qpb.Distance_Euclid, nil
	case "dot", "ip":
		return qpb.Distance_Dot, nil
	case "manhattan":
		return qpb.Distance_Manhattan, nil
	default:
		return 0, model.InputErrorf("qdrant: unknown metric %q", s)
	}
}

func (d *Driver) Name() string { return d.cfg.Name }

// Addr is the host:port dialed by Connect.
func (d *Driver) Addr() string {
	return net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
}

func (d *Driver) dialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{grpc.WithBlock()}
	if d.cfg.TLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if key := d.cfg.APIKey; key != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}))
	}
	return opts
}

func (d *Driver) Connect(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DialTimeout)
		defer cancel()
	}

	conn, err := grpc.DialContext(ctx, d.Addr(), d.dialOptions()...)
	if err != nil {
		return driver.ConnectionError(err, "qdrant: dial %s", d.Addr())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		_ = d.conn.Close()
	}
	d.conn = conn
	d.collections = qpb.NewCollectionsClient(conn)
	d.points = qpb.NewPointsClient(conn)
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn, d.collections, d.points = nil, nil, nil
	if err != nil {
		return driver.ConnectionError(err, "qdrant: close")
	}
	return nil
}

func (d *Driver) clients() (qpb.CollectionsClient, qpb.PointsClient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return nil, nil, driver.NotConnected(d.cfg.Name)
	}
	return d.collections, d.points, nil
}

func (d *Driver) collectionName(name string) string {
	if d.cfg.Collection != "" {
		return d.cfg.Collection
	}
	return name
}

// CreateCollection drops any existing collection and creates a new one.
func (d *Driver) CreateCollection(ctx context.Context, name string, dimension int) error {
	collections, _, err := d.clients()
	if err != nil {
		return err
	}
	name = d.collectionName(name)

	// Missing collections are fine here.
	_, _ = collections.Delete(ctx, &qpb.DeleteCollection{CollectionName: name})

	_, err = collections.Create(ctx, &qpb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qpb.VectorsConfig{
			Config: &qpb.VectorsConfig_Params{
				Params: &qpb.VectorParams{Size: uint64(dimension), Distance: d.distance},
			},
		},
	})
	if err != nil {
		return driver.CollectionError(err, "qdrant: create %s", name)
	}
	return nil
}

func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	collections, _, err := d.clients()
	if err != nil {
		return err
	}
	name = d.collectionName(name)
	if _, err := collections.Delete(ctx, &qpb.DeleteCollection{CollectionName: name}); err != nil {
		return driver.CollectionError(err, "qdrant: delete %s", name)
	}
	return nil
}

func (d *Driver) InsertVectors(ctx context.Context, collection string, vectors [][]float32, md []driver.Metadata, batchSize int) error {
	_, points, err := d.clients()
	if err != nil {
		return err
	}
	collection = d.collectionName(collection)
	wait := d.wait

	return driver.Chunk(len(vectors), batchSize, func(start, end int) error {
		batch := make([]*qpb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			p, err := Point(uint64(i), vectors[i], driver.MetadataAt(md, i))
			if err != nil {
				return driver.OperationError(err, "qdrant: payload of point %d", i)
			}
			batch = append(batch, p)
		}
		if _, err := points.Upsert(ctx, &qpb.UpsertPoints{CollectionName: collection, Wait: &wait, Points: batch}); err != nil {
			return driver.OperationError(err, "qdrant: upsert points %d-%d into %s", start, end, collection)
		}
		return nil
	})
}

// Point builds a point with a numeric id, a dense vector and payload.
func Point(id uint64, vec []float32, payload driver.Metadata) (*qpb.PointStruct, error) {
	p := &qpb.PointStruct{
		Id: &qpb.PointId{PointIdOptions: &qpb.PointId_Num{Num: id}},
		Vectors: &qpb.Vectors{
			VectorsOptions: &qpb.Vectors_Vector{
				Vector: &qpb.Vector{Vector: &qpb.Vector_Dense{Dense: &qpb.DenseVector{Data: vec}}},
			},
		},
	}
	if len(payload) > 0 {
		values, err := qpb.TryValueMap(payload)
		if err != nil {
			return nil, err
		}
		p.Payload = values
	}
	return p, nil
}

func (d *Driver) SearchVectors(ctx context.Context, collection string, queries [][]float32, topK int) ([][]driver.Match, error) {
	_, points, err := d.clients()
	if err != nil {
		return nil, err
	}
	collection = d.collectionName(collection)

	out := make([][]driver.Match, len(queries))
	for i, q := range queries {
		resp, err := points.Search(ctx, &qpb.SearchPoints{
			CollectionName: collection,
			Vector:         q,
			Limit:          uint64(topK),
		})
		if err != nil {
			return nil, driver.OperationError(err, "qdrant: search %s", collection)
		}
		matches := make([]driver.Match, 0, len(resp.GetResult()))
		for _, sp := range resp.GetResult() {
			matches = append(matches, driver.Match{ID: pointID(sp.GetId()), Score: sp.GetScore()})
		}
		out[i] = matches
	}
	return out, nil
}

func pointID(id *qpb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
