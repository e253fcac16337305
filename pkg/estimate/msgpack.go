package estimate

import (
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Results maps each available method to its Result
type Results map[Method]Result

// EncodeMsgpack writes the map with its keys in sorted order so equal
// reports encode to equal bytes.
func (r Results) EncodeMsgpack(enc *msgpack.Encoder) error {
	if r == nil {
		return enc.EncodeNil()
	}

	keys := make([]string, 0, len(r))
	for m := range r {
		keys = append(keys, string(m))
	}
	sort.Strings(keys)

	if err := enc.EncodeMapLen(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.Encode(r[Method(k)]); err != nil {
			return err
		}
	}
	return nil
}
