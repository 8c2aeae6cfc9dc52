package beach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/cache"
	"github.com/shorecrew/shorecrew/logger"
	"github.com/shorecrew/shorecrew/store"
	"github.com/shorecrew/shorecrew/types"
)

func TestSlugsMatchCatalog(t *testing.T) {
	slugs := Slugs()
	require.Len(t, slugs, len(Catalog))
	for i, b := range Catalog {
		assert.Equal(t, b.Slug, slugs[i])
	}
}

func TestBySlug(t *testing.T) {
	b, ok := BySlug("pelican-point")
	require.True(t, ok)
	assert.Equal(t, "Pelican Point", b.Name)

	_, ok = BySlug("no-such-beach")
	assert.False(t, ok)
}

func TestNearest(t *testing.T) {
	// Right on top of North Cove.
	b, dist := Nearest(36.9741, -122.0308)
	assert.Equal(t, "north-cove", b.Slug)
	assert.InDelta(t, 0, dist, 0.01)

	// Offshore south-west, closest to Sandpiper Strand.
	b, _ = Nearest(36.89, -122.12)
	assert.Equal(t, "sandpiper-strand", b.Slug)
}

func newTestBeachService(t *testing.T) *Service {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())
	st := store.NewMemoryStore(log)
	require.NoError(t, st.Start())
	t.Cleanup(func() { st.Stop() })

	c := cache.New(st, log, "beachtest", cache.KnownKeys(Slugs()))
	return NewService(c, log)
}

func TestSelectPersistsAcrossReads(t *testing.T) {
	svc := newTestBeachService(t)

	// Nothing stored yet: the first catalog beach is the default.
	assert.Equal(t, Catalog[0].Slug, svc.Selected().Slug)

	b, err := svc.Select("harbor-mouth")
	require.NoError(t, err)
	assert.Equal(t, "harbor-mouth", b.Slug)

	assert.Equal(t, "harbor-mouth", svc.Selected().Slug)
}

func TestSelectUnknownSlug(t *testing.T) {
	svc := newTestBeachService(t)

	_, err := svc.Select("atlantis")
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrBeachNotFound))

	// The stored selection is untouched.
	assert.Equal(t, Catalog[0].Slug, svc.Selected().Slug)
}

func TestGet(t *testing.T) {
	svc := newTestBeachService(t)

	b, err := svc.Get("driftwood-flats")
	require.NoError(t, err)
	assert.Equal(t, "Driftwood Flats", b.Name)

	_, err = svc.Get("atlantis")
	assert.Error(t, err)
}
