package vecgo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/hupe1980/vecgo/distance"
	"github.com/hupe1980/vecgo/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/model"
)

func TestParseMetric(t *testing.T) {
	for in, want := range map[string]distance.Metric{
		"":       distance.MetricL2,
		"L2":     distance.MetricL2,
		"cosine": distance.MetricCosine,
		"dot":    distance.MetricDot,
	} {
		got, err := ParseMetric(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMetric("manhattan")
	assert.True(t, errors.Is(err, model.ErrInput))
}

func TestNewDefaults(t *testing.T) {
	d, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "vecgo", d.Name())
	assert.Equal(t, DefaultPath, d.path)
}

func TestDocument(t *testing.T) {
	doc := Document(driver.Metadata{
		"category": "tech",
		"priority": 3,
		"ts":       int64(1600000000),
		"score":    0.25,
		"hot":      true,
		"tags":     []string{"a"},
	})
	assert.Equal(t, metadata.String("tech"), doc["category"])
	assert.Equal(t, metadata.Int(3), doc["priority"])
	assert.Equal(t, metadata.Int(1600000000), doc["ts"])
	assert.Equal(t, metadata.Float(0.25), doc["score"])
	assert.Equal(t, metadata.Bool(true), doc["hot"])
	assert.Equal(t, metadata.String("[a]"), doc["tags"])

	assert.NotNil(t, Document(nil))
}

func TestRequiresConnect(t *testing.T) {
	d, err := New(Config{Path: t.TempDir()})
	require.NoError(t, err)

	err = d.CreateCollection(context.Background(), "c", 4)
	assert.True(t, errors.Is(err, model.ErrConnection))

	_, err = d.SearchVectors(context.Background(), "c", [][]float32{{1, 2, 3, 4}}, 1)
	assert.True(t, errors.Is(err, model.ErrConnection))
}

func TestUnknownCollection(t *testing.T) {
	d, err := New(Config{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect(context.Background())

	err = d.InsertVectors(context.Background(), "missing", [][]float32{{1}}, nil, 1)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.True(t, errors.Is(err, model.ErrOperation))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	d, err := New(Config{Name: "local", Path: root})
	require.NoError(t, err)
	require.NoError(t, d.Connect(ctx))
	defer d.Disconnect(ctx)

	require.NoError(t, d.CreateCollection(ctx, "bench_tiny", 4))

	vectors := make([][]float32, 100)
	md := make([]driver.Metadata, 100)
	for i := range vectors {
		vectors[i] = []float32{float32(i), 1, 0, 0}
		md[i] = driver.Metadata{"i": i}
	}
	require.NoError(t, d.InsertVectors(ctx, "bench_tiny", vectors, md, 30))

	out, err := d.SearchVectors(ctx, "bench_tiny", [][]float32{{10, 1, 0, 0}, {50, 1, 0, 0}}, 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, matches := range out {
		assert.NotEmpty(t, matches)
		assert.LessOrEqual(t, len(matches), 5)
	}

	require.NoError(t, d.DeleteCollection(ctx, "bench_tiny"))
	_, err = os.Stat(filepath.Join(root, "bench_tiny"))
	assert.True(t, os.IsNotExist(err))
}
