// Package weaviate adapts a Weaviate server to driver.Driver using the
// REST batch API for writes and GraphQL nearVector queries for search.
package weaviate

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/model"
	"github.com/daryltucker/vecbench/internal/output"
)

// DefaultPort is Weaviate's HTTP port.
const DefaultPort = 8080

// StartupTimeout bounds how long Connect waits for the server to be ready.
const StartupTimeout = 30 * time.Second

// Config configures the Weaviate backend.
type Config struct {
	Name       string
	Host       string
	Port       int
	Scheme     string
	APIKey     string
	Metric     string
	Collection string
	RetryMax   int
}

// Driver talks to Weaviate over HTTP. The underlying client is safe for
// concurrent use; SearchVectors may run from many goroutines.
type Driver struct {
	cfg      Config
	distance string

	mu     sync.RWMutex
	client *weaviate.Client
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
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Name == "" {
		cfg.Name = "weaviate"
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 3
	}
	return &Driver{cfg: cfg, distance: dist}, nil
}

// ParseDistance maps a metric name to Weaviate's vectorIndexConfig
// distance. Empty means cosine.
func ParseDistance(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", "cosine":
		return "cosine", nil
	case "l2", "l2-squared", "euclidean":
		return "l2-squared", nil
	case "dot", "ip":
		return "dot", nil
	case "manhattan", "hamming":
		return strings.ToLower(s), nil
	default:
		return "", model.InputErrorf("weaviate: unknown metric %q", s)
	}
}

func (d *Driver) Name() string { return d.cfg.Name }

// Host is the host:port the client talks to.
func (d *Driver) Host() string {
	return d.cfg.Host + ":" + strconv.Itoa(d.cfg.Port)
}

func (d *Driver) Connect(ctx context.Context) error {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = d.cfg.RetryMax
	retryClient.Logger = output.Logger

	wcfg := weaviate.Config{
		Host:             d.Host(),
		Scheme:           d.cfg.Scheme,
		ConnectionClient: retryClient.HTTPClient,
		StartupTimeout:   StartupTimeout,
	}
	if d.cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: d.cfg.APIKey}
		wcfg.ConnectionClient = nil
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return driver.ConnectionError(err, "weaviate: connect %s", d.Host())
	}
	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return driver.ConnectionError(describe(err), "weaviate: ready check %s", d.Host())
	}
	if !ready {
		return driver.ConnectionError(errors.New("server not ready"), "weaviate: %s", d.Host())
	}

	d.mu.Lock()
	d.client = client
	d.mu.Unlock()
	return nil
}

// Disconnect drops the client. The HTTP transport has no session to close.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	d.client = nil
	d.mu.Unlock()
	return nil
}

func (d *Driver) get() (*weaviate.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.client == nil {
		return nil, driver.NotConnected(d.cfg.Name)
	}
	return d.client, nil
}

// ClassName converts a collection name into a valid Weaviate class name.
func ClassName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (d *Driver) className(name string) string {
	if d.cfg.Collection != "" {
		return ClassName(d.cfg.Collection)
	}
	return ClassName(name)
}

// CreateCollection drops the class if present and creates it with an
// hnsw index and no vectorizer.
func (d *Driver) CreateCollection(ctx context.Context, name string, dimension int) error {
	client, err := d.get()
	if err != nil {
		return err
	}
	class := d.className(name)

	// Missing classes are fine here.
	_ = client.Schema().ClassDeleter().WithClassName(class).Do(ctx)

	err = client.Schema().ClassCreator().WithClass(&models.Class{
		Class:           class,
		Description:     "vecbench collection, dimension " + strconv.Itoa(dimension),
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": d.distance,
		},
	}).Do(ctx)
	if err != nil {
		return driver.CollectionError(describe(err), "weaviate: create class %s", class)
	}
	return nil
}

func (d *Driver) DeleteCollection(ctx context.Context, name string) error {
	client, err := d.get()
	if err != nil {
		return err
	}
	class := d.className(name)
	if err := client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil {
		return driver.CollectionError(describe(err), "weaviate: delete class %s", class)
	}
	return nil
}

func (d *Driver) InsertVectors(ctx context.Context, collection string, vectors [][]float32, md []driver.Metadata, batchSize int) error {
	client, err := d.get()
	if err != nil {
		return err
	}
	class := d.className(collection)

	return driver.Chunk(len(vectors), batchSize, func(start, end int) error {
		batch := client.Batch().ObjectsBatcher()
		for i := start; i < end; i++ {
			batch = batch.WithObject(&models.Object{
				Class:      class,
				ID:         strfmt.UUID(UUID(uint64(i))),
				Properties: Properties(driver.MetadataAt(md, i)),
				Vector:     vectors[i],
			})
		}
		resp, err := batch.Do(ctx)
		if err != nil {
			return driver.OperationError(describe(err), "weaviate: insert objects %d-%d into %s", start, end, class)
		}
		if err := objectErrors(resp); err != nil {
			return driver.OperationError(err, "weaviate: insert objects %d-%d into %s", start, end, class)
		}
		return nil
	})
}

func (d *Driver) SearchVectors(ctx context.Context, collection string, queries [][]float32, topK int) ([][]driver.Match, error) {
	client, err := d.get()
	if err != nil {
		return nil, err
	}
	class := d.className(collection)
	fields := graphql.Field{
		Name: "_additional",
		Fields: []graphql.Field{
			{Name: "id"},
			{Name: "distance"},
		},
	}

	out := make([][]driver.Match, len(queries))
	for i, q := range queries {
		resp, err := client.GraphQL().Get().
			WithClassName(class).
			WithNearVector(client.GraphQL().NearVectorArgBuilder().WithVector(q)).
			WithLimit(topK).
			WithFields(fields).
			Do(ctx)
		if err != nil {
			return nil, driver.OperationError(describe(err), "weaviate: search %s", class)
		}
		if len(resp.Errors) > 0 {
			return nil, driver.OperationError(errors.Newf("%s", resp.Errors[0].Message), "weaviate: search %s", class)
		}
		matches, err := ParseHits(resp.Data, class)
		if err != nil {
			return nil, driver.OperationError(err, "weaviate: search %s", class)
		}
		out[i] = matches
	}
	return out, nil
}

// ParseHits extracts matches from a GraphQL Get response.
func ParseHits(data map[string]models.JSONObject, class string) ([]driver.Match, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, errors.New("response has no Get object")
	}
	items, ok := get[class].([]interface{})
	if !ok {
		if get[class] == nil {
			return nil, nil
		}
		return nil, errors.Newf("unexpected %T for class %s", get[class], class)
	}

	matches := make([]driver.Match, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]interface{})
		add, _ := obj["_additional"].(map[string]interface{})
		m := driver.Match{}
		if id, ok := add["id"].(string); ok {
			m.ID = id
			if n, err := IndexFromUUID(id); err == nil {
				m.ID = strconv.FormatUint(n, 10)
			}
		}
		if dist, ok := add["distance"].(float64); ok {
			m.Score = float32(dist)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// UUID encodes a row index as a deterministic object id.
func UUID(i uint64) string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[8:], i)
	return uuid.UUID(b).String()
}

// IndexFromUUID reverses UUID.
func IndexFromUUID(s string) (uint64, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return 0, errors.Wrap(err, "parse object id")
	}
	return binary.BigEndian.Uint64(id[8:]), nil
}

// reserved property names that Weaviate rejects.
var reserved = map[string]bool{"id": true, "_id": true, "_additional": true}

// Properties maps a metadata record to object properties, renaming keys
// Weaviate reserves.
func Properties(md driver.Metadata) map[string]interface{} {
	if len(md) == 0 {
		return nil
	}
	props := make(map[string]interface{}, len(md))
	for k, v := range md {
		if reserved[k] {
			k = "doc_" + strings.TrimLeft(k, "_")
		}
		props[k] = v
	}
	return props
}

func objectErrors(resp []models.ObjectsGetResponse) error {
	var errs error
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			errs = errors.CombineErrors(errs, errors.Newf("object %s: %s", r.ID, e.Message))
		}
	}
	return errs
}

// describe unwraps the client's error type so the server message is kept.
func describe(err error) error {
	var werr *fault.WeaviateClientError
	if errors.As(err, &werr) {
		if werr.DerivedFromError != nil {
			return errors.Wrapf(werr.DerivedFromError, "status %d: %s", werr.StatusCode, werr.Msg)
		}
		return errors.Newf("status %d: %s", werr.StatusCode, werr.Msg)
	}
	return err
}
