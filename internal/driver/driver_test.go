package driver

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vecbench/internal/model"
)

func TestChunkCoversEveryIndexOnce(t *testing.T) {
	var ranges [][2]int
	total := 0
	err := Chunk(1000, 100, func(start, end int) error {
		ranges = append(ranges, [2]int{start, end})
		total += end - start
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, ranges, 10)
	assert.Equal(t, 1000, total)
	assert.Equal(t, [2]int{900, 1000}, ranges[9])
}

func TestChunkShortTail(t *testing.T) {
	var sizes []int
	require.NoError(t, Chunk(7, 3, func(start, end int) error {
		sizes = append(sizes, end-start)
		return nil
	}))
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestChunkStopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Chunk(10, 2, func(start, end int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestChunkEmpty(t *testing.T) {
	called := false
	require.NoError(t, Chunk(0, 10, func(int, int) error { called = true; return nil }))
	assert.False(t, called)
}

func TestMetadataAt(t *testing.T) {
	md := []Metadata{{"a": 1}}
	assert.Equal(t, Metadata{"a": 1}, MetadataAt(md, 0))
	assert.Nil(t, MetadataAt(md, 1))
	assert.Nil(t, MetadataAt(nil, 0))
}

func TestErrorClasses(t *testing.T) {
	base := errors.New("dial tcp: refused")

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"connection", ConnectionError(base, "connect %s", "qdrant"), model.ErrConnection},
		{"collection", CollectionError(base, "create %s", "bench_small"), model.ErrCollection},
		{"operation", OperationError(base, "search"), model.ErrOperation},
		{"not connected", NotConnected("qdrant"), model.ErrConnection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.want))
			assert.True(t, IsClassified(tc.err))
		})
	}

	assert.False(t, IsClassified(base))
}
