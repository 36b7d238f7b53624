//go:build !windows

package rfs

import (
	"fmt"
	"os"
	"syscall"
)

// DeviceID returns the device identifier (st_dev) of the filesystem
// containing path, used by the planner and materializer to decide hard
// link eligibility (spec §4.6/§4.7).
func DeviceID(path string) (uint64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("unable to stat path: %w", err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("unable to extract device information for %s", path)
	}
	return uint64(stat.Dev), nil
}

// FileID returns the inode number of path, which is shared by hard-linked
// files (spec §8 property 4).
func FileID(path string) (uint64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("unable to stat path: %w", err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("unable to extract inode information for %s", path)
	}
	return uint64(stat.Ino), nil
}

// isCrossDeviceError reports whether err (as returned by os.Link) is due
// to attempting a hard link across devices.
func isCrossDeviceError(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return linkErr.Err == syscall.EXDEV
}

// isLinkUnsupportedError reports whether err indicates that the
// underlying filesystem doesn't support hard links at all, or that the
// source file's link count has been exhausted.
func isLinkUnsupportedError(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return linkErr.Err == syscall.EPERM ||
		linkErr.Err == syscall.EMLINK ||
		linkErr.Err == syscall.ENOTSUP ||
		linkErr.Err == syscall.EOPNOTSUPP
}
