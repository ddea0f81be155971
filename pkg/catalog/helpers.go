package catalog

import (
	"bytes"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// indexKeySep separates individual keys within a secondary-index value.
var indexKeySep = []byte{0x1e} // ASCII record separator

// appendIndexKey adds key to the list stored under indexKey in b, if not
// already present.
func appendIndexKey(b *bolt.Bucket, indexKey, key []byte) error {
	existing := decodeIndexKeys(b.Get(indexKey))
	for _, k := range existing {
		if bytes.Equal(k, key) {
			return nil
		}
	}
	existing = append(existing, key)
	return b.Put(indexKey, encodeIndexKeys(existing))
}

// removeIndexKey removes key from the list stored under indexKey in b.
func removeIndexKey(b *bolt.Bucket, indexKey, key []byte) error {
	existing := decodeIndexKeys(b.Get(indexKey))
	out := existing[:0]
	for _, k := range existing {
		if !bytes.Equal(k, key) {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return b.Delete(indexKey)
	}
	return b.Put(indexKey, encodeIndexKeys(out))
}

func encodeIndexKeys(keys [][]byte) []byte {
	return bytes.Join(keys, indexKeySep)
}

func decodeIndexKeys(raw []byte) [][]byte {
	if len(raw) == 0 {
		return nil
	}
	parts := bytes.Split(raw, indexKeySep)
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		cp := make([]byte, len(p))
		copy(cp, p)
		out = append(out, cp)
	}
	return out
}
