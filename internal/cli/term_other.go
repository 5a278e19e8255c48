//go:build !linux

package cli

func isTerminal(fd uintptr) bool { return false }
