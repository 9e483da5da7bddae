//go:build !govips || !cgo

package pipeline

import "errors"

func Startup() error {
	return registerBuiltins()
}

func Shutdown() {}

func encodeWebP(_ []byte) ([]byte, error) {
	return nil, errors.New("webp export requires govips build tag")
}
