package storage

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
)

// wrapErr turns a driver error into a StorageError. Interrupted statements
// and lock contention get the matching errdefs sentinel in their chain.
func (idb *IndexDB) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code {
		case sqlite3.ErrInterrupt:
			err = fmt.Errorf("%w: %w", errdefs.ErrInterrupted, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			err = fmt.Errorf("%w: %w", errdefs.ErrLocked, err)
		}
	}
	return errdefs.NewStorageError(op, idb.location, err)
}
