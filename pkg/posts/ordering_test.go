package posts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
)

func ts(day int) time.Time {
	return time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC)
}

func makePost(id string, created time.Time) *Post {
	return &Post{
		ID:           id,
		CollectionID: "c1",
		AuthorID:     "author",
		Media:        []MediaItem{{URL: "https://cdn.example.com/" + id + ".jpg", Kind: MediaPhoto}},
		CreatedAt:    created,
	}
}

func pin(p *Post, at time.Time) *Post {
	p.IsPinned = true
	p.PinnedAt = &at
	return p
}

func ids(in []*Post) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, p.ID)
	}
	return out
}

func TestSortedPinnedFirst(t *testing.T) {
	all := []*Post{
		makePost("old", ts(1)),
		pin(makePost("p1", ts(2)), ts(10)),
		makePost("new", ts(5)),
		pin(makePost("p2", ts(3)), ts(12)),
	}

	got := Sorted(all, collections.TypeInvite, SortNewestFirst)

	// Most recently pinned leads, then unpinned newest first.
	assert.Equal(t, []string{"p2", "p1", "new", "old"}, ids(got))
}

func TestSortedOptions(t *testing.T) {
	a := makePost("a", ts(1))
	a.Caption = "Beach day"
	b := makePost("b", ts(2))
	b.Title = "apres ski"
	c := makePost("c", ts(3))

	all := []*Post{a, b, c}

	t.Run("newest first", func(t *testing.T) {
		assert.Equal(t, []string{"c", "b", "a"}, ids(Sorted(all, collections.TypeInvite, SortNewestFirst)))
	})

	t.Run("oldest first", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, ids(Sorted(all, collections.TypeInvite, SortOldestFirst)))
	})

	t.Run("alphabetical is case insensitive, caption wins over title", func(t *testing.T) {
		// "apres ski" < "beach day"; the keyless post sorts last.
		assert.Equal(t, []string{"b", "a", "c"}, ids(Sorted(all, collections.TypeInvite, SortAlphabetical)))
	})

	t.Run("individual collections ignore the stored option", func(t *testing.T) {
		assert.Equal(t, []string{"c", "b", "a"}, ids(Sorted(all, collections.TypeIndividual, SortAlphabetical)))
	})

	t.Run("unknown stored option falls back to newest first", func(t *testing.T) {
		assert.Equal(t, []string{"c", "b", "a"}, ids(Sorted(all, collections.TypeInvite, SortOption("curated"))))
	})
}

func TestSortedDropsDeleted(t *testing.T) {
	gone := makePost("gone", ts(4))
	now := ts(5)
	gone.DeletedAt = &now

	got := Sorted([]*Post{makePost("kept", ts(1)), gone}, collections.TypeInvite, SortNewestFirst)
	assert.Equal(t, []string{"kept"}, ids(got))
}

func TestApplyPinEvictsOldest(t *testing.T) {
	p1 := pin(makePost("p1", ts(1)), ts(11))
	p2 := pin(makePost("p2", ts(2)), ts(12))
	p3 := pin(makePost("p3", ts(3)), ts(13))
	p4 := pin(makePost("p4", ts(4)), ts(14))
	fresh := makePost("p5", ts(5))

	all := []*Post{p1, p2, p3, p4, fresh}
	evicted := ApplyPin(all, fresh, ts(15))

	require.NotNil(t, evicted)
	assert.Equal(t, "p1", evicted.ID)
	assert.False(t, p1.IsPinned)
	assert.Nil(t, p1.PinnedAt)
	assert.True(t, fresh.IsPinned)
	require.NotNil(t, fresh.PinnedAt)
	assert.Equal(t, ts(15), *fresh.PinnedAt)

	got := Sorted(all, collections.TypeInvite, SortNewestFirst)
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, ids(got))
}

func TestApplyPinUnderCap(t *testing.T) {
	p1 := pin(makePost("p1", ts(1)), ts(11))
	fresh := makePost("p2", ts(2))

	evicted := ApplyPin([]*Post{p1, fresh}, fresh, ts(12))

	assert.Nil(t, evicted)
	assert.True(t, p1.IsPinned)
	assert.True(t, fresh.IsPinned)
}

func TestApplyPinRefreshesExistingPin(t *testing.T) {
	p := pin(makePost("p1", ts(1)), ts(11))

	evicted := ApplyPin([]*Post{p}, p, ts(20))

	assert.Nil(t, evicted)
	require.NotNil(t, p.PinnedAt)
	assert.Equal(t, ts(20), *p.PinnedAt)
}

func TestApplyUnpinIdempotent(t *testing.T) {
	p := pin(makePost("p1", ts(1)), ts(11))

	ApplyUnpin(p)
	ApplyUnpin(p)

	assert.False(t, p.IsPinned)
	assert.Nil(t, p.PinnedAt)
}

func TestValidateNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateNew(makePost("p1", ts(1))))
	})

	t.Run("requires media", func(t *testing.T) {
		p := makePost("p1", ts(1))
		p.Media = nil
		assert.ErrorIs(t, ValidateNew(p), collections.ErrInvariantViolation)
	})

	t.Run("caps media items", func(t *testing.T) {
		p := makePost("p1", ts(1))
		for i := 0; i < MaxMediaItems; i++ {
			p.Media = append(p.Media, MediaItem{URL: "https://cdn.example.com/x.jpg", Kind: MediaPhoto})
		}
		assert.ErrorIs(t, ValidateNew(p), collections.ErrInvariantViolation)
	})

	t.Run("rejects unknown media kind", func(t *testing.T) {
		p := makePost("p1", ts(1))
		p.Media[0].Kind = MediaKind("gif")
		assert.ErrorIs(t, ValidateNew(p), collections.ErrInvariantViolation)
	})
}
