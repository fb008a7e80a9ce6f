package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over a fixed set of shards
type ring[T any] struct {
	points *treemap.Map

	// Value of the lowest point, used when a hash falls past the last point
	first T
}

// newRing places replicas points on the ring for every named shard
func newRing[T any](shards map[string]T, replicas uint) *ring[T] {
	points := treemap.NewWith(utils.Int64Comparator)
	for name, value := range shards {
		nameHash, _ := murmur3.Sum128([]byte(name))

		seed := make([]byte, 12)
		binary.LittleEndian.PutUint64(seed, nameHash)
		for i := uint32(0); i < uint32(replicas); i++ {
			binary.LittleEndian.PutUint32(seed[8:], i)
			point, _ := murmur3.Sum128(seed)
			points.Put(int64(point), value)
		}
	}

	r := &ring[T]{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(T)
	}
	return r
}

// shard returns the shard owning key
func (r *ring[T]) shard(key []byte) T {
	hash, _ := murmur3.Sum128(key)

	_, value := r.points.Ceiling(int64(hash))
	if value == nil {
		return r.first
	}
	return value.(T)
}
