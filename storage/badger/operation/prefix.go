package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

const (
	// codes for formal state snapshots
	codeSnapshot = 10
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case model.ValidatorID:
		return b(uint32(i))
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
