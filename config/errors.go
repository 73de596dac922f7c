package config

import (
	"errors"
	"fmt"
)

// InvalidConfigErr indicates that a loaded configuration value is invalid.
type InvalidConfigErr struct {
	key string
	err error
}

func (e InvalidConfigErr) Error() string {
	return fmt.Sprintf("invalid configuration value %s: %s", e.key, e.err.Error())
}

func (e InvalidConfigErr) Unwrap() error {
	return e.err
}

// NewInvalidConfigErr returns a new InvalidConfigErr for the configuration key.
func NewInvalidConfigErr(key string, err error) InvalidConfigErr {
	return InvalidConfigErr{key: key, err: err}
}

// IsInvalidConfigErr returns whether an error is InvalidConfigErr
func IsInvalidConfigErr(err error) bool {
	var e InvalidConfigErr
	return errors.As(err, &e)
}
