package db

import "errors"

// ErrKeyNotFound reports a missing or expired key.
var ErrKeyNotFound = errors.New("db: key not found")

// Operation names carried by Error. They follow the Redis command names the
// other drivers emulate.
const (
	OpPing    = "PING"
	OpGet     = "GET"
	OpSet     = "SET"
	OpDel     = "DEL"
	OpExists  = "EXISTS"
	OpScan    = "SCAN"
	OpHSet    = "HSET"
	OpHGetAll = "HGETALL"
	OpHDel    = "HDEL"
)

// Error is a driver failure tagged with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with op. A nil err stays nil and ErrKeyNotFound passes
// through untagged so callers can compare it directly.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrKeyNotFound) {
		return err
	}
	return &Error{Op: op, Err: err}
}
