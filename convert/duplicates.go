package convert

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	cuckoo "github.com/linvon/cuckoo-filter"
)

const (
	cuckooBucketSize      = 4
	cuckooFingerprintSize = 32
	cuckooNumBuckets      = 250000 // 1M keys
)

// DuplicateFilter remembers record keys and reports keys that were probably
// seen before. False positives are possible, misses are not.
type DuplicateFilter struct {
	filter *cuckoo.Filter
	buf    []byte
}

func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{
		filter: cuckoo.NewFilter(cuckooBucketSize, cuckooFingerprintSize,
			cuckooNumBuckets, cuckoo.TableTypePacked),
		buf: make([]byte, 8),
	}
}

// Seen adds key and reports whether it was already present. Keys compare
// case-insensitively, as dns do.
func (d *DuplicateFilter) Seen(key string) bool {
	binary.LittleEndian.PutUint64(d.buf, xxhash.Sum64String(strings.ToLower(key)))
	if d.filter.Contain(d.buf) {
		return true
	}
	d.filter.Add(d.buf)
	return false
}

// Size returns the number of keys added.
func (d *DuplicateFilter) Size() uint {
	return d.filter.Size()
}
