package storage

import (
	"context"
	"strings"
	"time"
)

// Prefixed scopes every key of an underlying backend under a namespace, so
// several installations can share one valkey server without seeing each
// other's sessions or cached responses. Keys handed back by Keys are
// reported without the namespace.
type Prefixed struct {
	inner     Backend
	namespace string
}

// WithNamespace wraps inner. An empty namespace returns inner unchanged.
func WithNamespace(inner Backend, namespace string) Backend {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return inner
	}
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &Prefixed{inner: inner, namespace: namespace}
}

// Namespace reports the key prefix applied to every operation.
func (p *Prefixed) Namespace() string { return p.namespace }

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, p.namespace+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, p.namespace+key, value, ttl)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.namespace+key)
}

func (p *Prefixed) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.inner.Keys(ctx, p.namespace+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, strings.TrimPrefix(key, p.namespace))
	}
	return out, nil
}

func (p *Prefixed) DeletePrefix(ctx context.Context, prefix string) error {
	return p.inner.DeletePrefix(ctx, p.namespace+prefix)
}

func (p *Prefixed) Close() error { return p.inner.Close() }
