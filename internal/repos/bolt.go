package repos

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

func boltGet(b *bolt.Bucket, key []byte, out interface{}) (bool, error) {
	v := b.Get(key)
	if v == nil {
		return false, nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func boltPut(b *bolt.Bucket, key []byte, v interface{}) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Put(key, enc)
}

// slotKey sorts lexicographically in time order.
func slotKey(t time.Time) []byte {
	return []byte(t.UTC().Format(time.RFC3339))
}
