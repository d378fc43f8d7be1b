package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/mattysabby19/taskly-api/internal/config"
)

// Manager assigns audit events to partition buckets with a consistent
// murmur3 hash, keeping ClickHouse partitions balanced regardless of actor
// distribution.
type Manager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(cfg config.BucketingConfig) *Manager {
	buckets := cfg.EventBuckets
	if buckets <= 0 {
		buckets = 16
	}

	return &Manager{
		eventBuckets: buckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// EventBucket returns a stable bucket in [0, eventBuckets) for the
// identifier.
func (m *Manager) EventBucket(identifier string) int {
	h := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(h)

	h.Reset()
	_, _ = h.Write([]byte(identifier))

	return int(h.Sum64() % uint64(m.eventBuckets))
}
