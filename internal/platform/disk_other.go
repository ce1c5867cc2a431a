//go:build !unix

package platform

import "errors"

// FreeSpace is not implemented off unix.
func FreeSpace(string) (int64, error) {
	return 0, errors.New("free space check not supported on this platform")
}
