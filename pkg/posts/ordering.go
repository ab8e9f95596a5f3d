package posts

import (
	"sort"
	"time"

	"github.com/gatherly/gatherly/pkg/collections"
)

// SortOption names the orderings a collection can choose for its
// unpinned posts.
type SortOption string

const (
	SortNewestFirst  SortOption = "newest_first"
	SortOldestFirst  SortOption = "oldest_first"
	SortAlphabetical SortOption = "alphabetical"
)

// Valid reports whether the option is one of the known orderings.
func (s SortOption) Valid() bool {
	switch s {
	case SortNewestFirst, SortOldestFirst, SortAlphabetical:
		return true
	}
	return false
}

// EffectiveSort resolves the ordering actually applied for a
// collection. Individual collections always read newest first, and an
// unknown stored option falls back to newest first rather than
// failing the read.
func EffectiveSort(collectionType collections.Type, stored SortOption) SortOption {
	if collectionType == collections.TypeIndividual {
		return SortNewestFirst
	}
	if !stored.Valid() {
		return SortNewestFirst
	}
	return stored
}

// Sorted returns the display order for a collection's posts: pinned
// posts first, most recently pinned leading, then the remaining posts
// under the effective sort. Soft-deleted posts are dropped. The input
// slice is not modified.
func Sorted(in []*Post, collectionType collections.Type, stored SortOption) []*Post {
	var pinned, unpinned []*Post
	for _, p := range in {
		if p == nil || p.IsDeleted() {
			continue
		}
		if p.IsPinned {
			pinned = append(pinned, p)
		} else {
			unpinned = append(unpinned, p)
		}
	}

	sort.SliceStable(pinned, func(i, j int) bool {
		return pinnedAt(pinned[i]).After(pinnedAt(pinned[j]))
	})

	switch EffectiveSort(collectionType, stored) {
	case SortOldestFirst:
		sort.SliceStable(unpinned, func(i, j int) bool {
			return unpinned[i].CreatedAt.Before(unpinned[j].CreatedAt)
		})
	case SortAlphabetical:
		sort.SliceStable(unpinned, func(i, j int) bool {
			ki, kj := unpinned[i].sortKey(), unpinned[j].sortKey()
			if ki == kj {
				return unpinned[i].CreatedAt.After(unpinned[j].CreatedAt)
			}
			// Untitled posts sort after titled ones.
			if ki == "" {
				return false
			}
			if kj == "" {
				return true
			}
			return ki < kj
		})
	default:
		sort.SliceStable(unpinned, func(i, j int) bool {
			return unpinned[i].CreatedAt.After(unpinned[j].CreatedAt)
		})
	}

	return append(pinned, unpinned...)
}

// ApplyPin marks the post pinned at now and returns the post that had
// to be unpinned to stay under the cap, if any. The eviction victim is
// the pinned post with the oldest pin time. Pinning an already pinned
// post refreshes its pin time.
func ApplyPin(all []*Post, target *Post, now time.Time) (evicted *Post) {
	if target.IsPinned {
		target.PinnedAt = &now
		return nil
	}

	var current []*Post
	for _, p := range all {
		if p == nil || p.IsDeleted() || p.ID == target.ID {
			continue
		}
		if p.IsPinned {
			current = append(current, p)
		}
	}

	if len(current) >= MaxPinned {
		evicted = current[0]
		for _, p := range current[1:] {
			if pinnedAt(p).Before(pinnedAt(evicted)) {
				evicted = p
			}
		}
		evicted.IsPinned = false
		evicted.PinnedAt = nil
	}

	target.IsPinned = true
	target.PinnedAt = &now
	return evicted
}

// ApplyUnpin clears the pin state. Unpinning an unpinned post is a
// no-op.
func ApplyUnpin(target *Post) {
	target.IsPinned = false
	target.PinnedAt = nil
}

func pinnedAt(p *Post) time.Time {
	if p.PinnedAt != nil {
		return *p.PinnedAt
	}
	// A pinned post without a timestamp came from a legacy write and
	// loses ties against every dated pin.
	return time.Time{}
}
