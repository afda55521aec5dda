package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/diario/internal/domain"
)

func entryAt(id string, t time.Time) domain.Entry {
	return domain.Entry{ID: id, CreatedAt: t}
}

func TestMostRecent(t *testing.T) {
	_, err := MostRecent(nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := MostRecent([]domain.Entry{
		entryAt("b", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)),
		entryAt("a", time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
}

func TestAllOnDateIgnoresTimeOfDay(t *testing.T) {
	entries := []domain.Entry{
		entryAt("late", time.Date(2026, 3, 5, 22, 15, 0, 0, time.UTC)),
		entryAt("other-day", time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)),
		entryAt("early", time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)),
		entryAt("other-year", time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)),
	}

	found := AllOnDate(entries, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.Len(t, found, 2)
	assert.Equal(t, "late", found[0].ID)
	assert.Equal(t, "early", found[1].ID)

	assert.Empty(t, AllOnDate(entries, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)))
}

func TestAllOnDateUsesTargetLocation(t *testing.T) {
	madrid := time.FixedZone("CET", 3600)
	// 23:30 UTC on the 4th is 00:30 on the 5th in CET
	entries := []domain.Entry{entryAt("a", time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC))}

	assert.Len(t, AllOnDate(entries, time.Date(2026, 3, 5, 0, 0, 0, 0, madrid)), 1)
	assert.Empty(t, AllOnDate(entries, time.Date(2026, 3, 4, 0, 0, 0, 0, madrid)))
}
