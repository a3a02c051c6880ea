//go:build !linux

package serial

import (
	"errors"
	"os"
)

func makeRaw(f *os.File, baud int) error {
	return errors.New("setting the baud rate is only supported on linux")
}
