package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

func encodeObject(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return data, nil
}

func decodeObject(data []byte, dst any) error {
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	return nil
}
