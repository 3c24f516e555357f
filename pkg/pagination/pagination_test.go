package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC), ID: uuid.New()}
	decoded, err := ParseCursor(EncodeCursor(original))
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, decoded.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, original.ID, decoded.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("not-base64!")
	assert.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

type row struct {
	id uuid.UUID
	at time.Time
}

func TestBuildPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{
		{uuid.New(), base.Add(3 * time.Minute)},
		{uuid.New(), base.Add(2 * time.Minute)},
		{uuid.New(), base.Add(1 * time.Minute)},
	}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := BuildPage(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := BuildPage(rows[:1], 2, cursorOf)
	assert.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)

	none := BuildPage[row](nil, 2, cursorOf)
	assert.NotNil(t, none.Items)
}
