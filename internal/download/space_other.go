//go:build !(linux || darwin || freebsd)

package download

import "errors"

// FreeSpace is not implemented on this platform; the check is skipped.
func FreeSpace(string) (int64, error) {
	return 0, errors.New("free space check unsupported on this platform")
}
