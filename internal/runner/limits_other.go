//go:build !linux && !darwin

package runner

func clampConcurrency(n int) int {
	return n
}
