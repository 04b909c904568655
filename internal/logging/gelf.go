package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfWriter connects a GELF UDP writer to the given Graylog address.
// The returned writer plugs into Options.GELF.
func NewGelfWriter(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connecting GELF writer to %s: %w", address, err)
	}
	return w, nil
}
