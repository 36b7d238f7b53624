//go:build windows

package rfs

import "errors"

// DeviceID reports 0 for every path on Windows, so every source counts as
// being on the destination's device. LinkAtomic still attempts a hard
// link there and treats any link failure as a reason to fall back to
// copying.
func DeviceID(path string) (uint64, error) {
	return 0, nil
}

func FileID(path string) (uint64, error) {
	return 0, errors.New("file IDs unavailable on this platform")
}

func isCrossDeviceError(err error) bool {
	return true
}

func isLinkUnsupportedError(err error) bool {
	return true
}
