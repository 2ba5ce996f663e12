package config

import (
	"bytes"
	"io"

	"github.com/qjebbs/go-jsons"
)

// Merge deep merges JSON documents. Later documents override earlier ones
// and arrays are concatenated.
func Merge(data []io.Reader) (io.Reader, error) {
	got, err := jsons.Merge(data)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(got), nil
}
