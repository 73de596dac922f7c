package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/alpenglow/storage"
)

// insert will encode the given entity and will insert the resulting binary
// data in the badger DB under the provided key. It will error if the key
// already exists.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		// check if the key already exists in the db
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}

		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}

		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		// persist the entity data into the DB
		err = tx.Set(key, val)
		if err != nil {
			return fmt.Errorf("could not store data: %w", err)
		}
		return nil
	}
}

// retrieve will retrieve the binary data under the given key from the badger DB
// and decode it into the given entity. The provided entity needs to be a
// pointer to an initialized entity of the correct type.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		// retrieve the item from the key-value store
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}

		// get the value from the item
		err = item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not decode entity: %w", err)
		}
		return nil
	}
}

// remove removes the entity with the given key. It returns storage.ErrNotFound
// if the key does not exist.
func remove(key []byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not check key: %w", err)
		}

		err = tx.Delete(key)
		if err != nil {
			return fmt.Errorf("could not delete key %x: %w", key, err)
		}
		return nil
	}
}

// maxKeySuffix is the longest key suffix following a traversal prefix.
const maxKeySuffix = 16

// traverseKeys calls handle with every key that has the given prefix, in
// ascending or, when reverse is set, descending order. Values are not loaded.
// Iteration stops early when handle returns false.
func traverseKeys(prefix []byte, reverse bool, handle func(key []byte) bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		options.Reverse = reverse

		it := tx.NewIterator(options)
		defer it.Close()

		// a reverse seek lands on the last key not greater than the seek key,
		// so it has to start past every key with the prefix
		seek := prefix
		if reverse {
			seek = append([]byte{}, prefix...)
			for i := 0; i < maxKeySuffix; i++ {
				seek = append(seek, 0xff)
			}
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if !handle(it.Item().KeyCopy(nil)) {
				return nil
			}
		}
		return nil
	}
}
