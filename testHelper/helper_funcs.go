package testHelper

// GroupBy buckets elements by key, keeping input order inside each bucket.
// Claim tests use it to spot a job handed to more than one worker.
func GroupBy[K comparable, V any](elements []V, key func(V) K) map[K][]V {
	groups := make(map[K][]V, len(elements))
	for _, e := range elements {
		k := key(e)
		groups[k] = append(groups[k], e)
	}
	return groups
}

// Partition splits elements into those matching keep and the rest.
func Partition[V any](elements []V, keep func(V) bool) (matched, rest []V) {
	for _, e := range elements {
		if keep(e) {
			matched = append(matched, e)
			continue
		}
		rest = append(rest, e)
	}
	return matched, rest
}

// Map projects each element, e.g. jobs to their ids.
func Map[V, R any](elements []V, fn func(V) R) []R {
	out := make([]R, 0, len(elements))
	for _, e := range elements {
		out = append(out, fn(e))
	}
	return out
}
