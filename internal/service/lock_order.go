package service

// OrderedPair returns the two account ids in global lock-acquisition order.
// Every transfer locks first before second, whichever side is the source,
// so no two transfers can wait on each other in a cycle.
func OrderedPair(a, b string) (first, second string) {
	if a <= b {
		return a, b
	}
	return b, a
}
