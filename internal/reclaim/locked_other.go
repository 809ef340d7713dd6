//go:build !unix && !windows

package reclaim

func isPlatformLock(error) bool { return false }

func checkLock(string) error { return nil }
