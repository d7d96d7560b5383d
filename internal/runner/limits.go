package runner

// minReservedFiles are descriptors kept free for stdio, the report and the resolver
const minReservedFiles = 32

// clampToLimit returns n bounded by the descriptors left in limit after a
// reserve, and never below 1.
func clampToLimit(n int, limit uint64) int {
	if limit <= minReservedFiles {
		return 1
	}
	if available := limit - minReservedFiles; uint64(n) > available {
		return int(available)
	}
	return n
}
