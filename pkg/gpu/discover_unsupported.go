//go:build !linux

package gpu

import "errors"

// Discover is only implemented on linux hosts.
func Discover() ([]Device, error) {
	return nil, errors.New("gpu discovery is only supported on linux")
}
