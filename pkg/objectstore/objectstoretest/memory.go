// Package objectstoretest provides an in-memory object store for tests.
package objectstoretest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m1k1o/go-playgate/pkg/objectstore"
)

// Memory keeps objects in a map and lists them in lexicographic order, like
// S3 does. Presigned URLs are deterministic.
type Memory struct {
	mu      sync.RWMutex
	name    string
	objects map[string][]byte
	sizes   map[string]int64

	ListErr    error
	GetErr     error
	PresignErr error

	presigns int
}

var _ objectstore.Client = (*Memory)(nil)

func New(name string) *Memory {
	return &Memory{
		name:    name,
		objects: map[string][]byte{},
		sizes:   map[string]int64{},
	}
}

// Put stores data under key.
func (m *Memory) Put(key string, data string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = []byte(data)
	m.sizes[key] = int64(len(data))
	return m
}

// PutSized stores an empty object reporting the given size.
func (m *Memory) PutSized(key string, size int64) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = nil
	m.sizes[key] = size
	return m
}

func (m *Memory) Presigns() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.presigns
}

func (m *Memory) Name() string {
	return m.name
}

func (m *Memory) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := []objectstore.Object{}
	for key, size := range m.sizes {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, objectstore.Object{Key: key, Size: size})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})
	return objects, nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, objectstore.ErrNotFound)
	}
	return data, nil
}

func (m *Memory) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.PresignErr != nil {
		return "", m.PresignErr
	}

	m.mu.Lock()
	m.presigns++
	m.mu.Unlock()

	u := url.URL{
		Scheme:   "https",
		Host:     m.name + ".store.test",
		Path:     "/" + key,
		RawQuery: url.Values{"X-Amz-Expires": {fmt.Sprint(int(ttl.Seconds()))}}.Encode(),
	}
	return u.String(), nil
}
