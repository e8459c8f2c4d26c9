// Package moderation holds the content-filter configuration shared by the
// session and the backend, plus the operator-facing collaborators: message
// reporting and filtered-message alerting.
package moderation

// FilterSet is the set of moderation reasons a room suppresses. Messages
// whose decoded filter reasons intersect the set never reach observers.
type FilterSet map[string]struct{}

// NewFilterSet builds a set from the configured reason tags.
func NewFilterSet(reasons ...string) FilterSet {
	set := make(FilterSet, len(reasons))
	for _, r := range reasons {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Intersects reports whether any of the given reasons is in the set.
func (f FilterSet) Intersects(reasons []string) bool {
	if len(f) == 0 {
		return false
	}
	for _, r := range reasons {
		if _, ok := f[r]; ok {
			return true
		}
	}
	return false
}
