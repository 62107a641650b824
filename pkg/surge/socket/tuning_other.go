//go:build !linux

package socket

func applyPlatformOptions(fd int) {}
