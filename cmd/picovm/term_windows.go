//go:build windows

package main

import "github.com/pkg/errors"

// setRawIO is not implemented on Windows: raw terminal IO requires termios,
// which has no Windows equivalent in this module's dependency set.
func setRawIO() (func(), error) {
	return nil, errors.New("raw IO not supported on windows")
}
