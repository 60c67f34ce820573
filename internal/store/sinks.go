package store

import (
	"io"

	"go.uber.org/multierr"
)

// CloseAll closes every sink and reports all failures together.
func CloseAll(closers ...io.Closer) error {
	var err error
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
