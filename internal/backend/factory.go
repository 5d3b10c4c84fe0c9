// Package backend builds drivers from configuration.
package backend

import (
	"sort"
	"strconv"
	"strings"

	"github.com/daryltucker/vecbench/internal/config"
	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/driver/qdrant"
	"github.com/daryltucker/vecbench/internal/driver/vecgo"
	"github.com/daryltucker/vecbench/internal/driver/weaviate"
	"github.com/daryltucker/vecbench/internal/model"
)

type constructor func(config.Backend) (driver.Driver, error)

var constructors = map[string]constructor{
	"qdrant": func(b config.Backend) (driver.Driver, error) {
		d, err := qdrant.New(qdrant.Config{
			Name:       b.Label(),
			Host:       b.Host,
			Port:       b.Port,
			APIKey:     b.APIKey,
			TLS:        b.TLS,
			Metric:     b.Metric,
			Collection: b.Collection,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"weaviate": func(b config.Backend) (driver.Driver, error) {
		retries, err := intOption(b, "retry_max")
		if err != nil {
			return nil, err
		}
		scheme := b.Scheme
		if scheme == "" && b.TLS {
			scheme = "https"
		}
		d, err := weaviate.New(weaviate.Config{
			Name:       b.Label(),
			Host:       b.Host,
			Port:       b.Port,
			Scheme:     scheme,
			APIKey:     b.APIKey,
			Metric:     b.Metric,
			Collection: b.Collection,
			RetryMax:   retries,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"vecgo": func(b config.Backend) (driver.Driver, error) {
		d, err := vecgo.New(vecgo.Config{
			Name:   b.Label(),
			Path:   b.Path,
			Metric: b.Metric,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	},
}

// Types lists the supported backend types.
func Types() []string {
	out := make([]string, 0, len(constructors))
	for t := range constructors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// New returns an unconnected driver for b.
func New(b config.Backend) (driver.Driver, error) {
	ctor, ok := constructors[strings.ToLower(b.Type)]
	if !ok {
		return nil, model.InputErrorf("backend %q: unknown type %q (supported: %s)", b.Label(), b.Type, strings.Join(Types(), ", "))
	}
	return ctor(b)
}

func intOption(b config.Backend, key string) (int, error) {
	v, ok := b.Options[key]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.InputErrorf("backend %q: option %s=%q is not an integer", b.Label(), key, v)
	}
	return n, nil
}
