package pass

import (
	"bytes"
	"testing"
	"time"

	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeBooking() models.Booking {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return models.Booking{
		ID:         "b1",
		TenantID:   "T1",
		ResourceID: "R2",
		StartAt:    start,
		EndAt:      start.Add(45 * time.Minute),
		BookingTZ:  "Asia/Kolkata",
		Status:     models.BookingStatusConfirmed,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	g := NewGenerator("secret")
	b := activeBooking()

	token, err := g.Token(b)
	require.NoError(t, err)

	p, err := g.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "b1", p.BookingID)
	assert.Equal(t, "T1", p.TenantID)
	assert.True(t, p.StartAt.Equal(b.StartAt))
	assert.Equal(t, "Asia/Kolkata", p.BookingTZ)
}

func TestTokensAreRandomized(t *testing.T) {
	g := NewGenerator("secret")
	a, err := g.Token(activeBooking())
	require.NoError(t, err)
	b, err := g.Token(activeBooking())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenWithWrongSecret(t *testing.T) {
	token, err := NewGenerator("secret").Token(activeBooking())
	require.NoError(t, err)

	_, err = NewGenerator("other").Open(token)
	assert.Error(t, err)
}

func TestOpenGarbage(t *testing.T) {
	g := NewGenerator("secret")
	_, err := g.Open("%%%")
	assert.Error(t, err)
	_, err = g.Open("c2hvcnQ=")
	assert.Error(t, err)
}

func TestInactiveBookingsGetNoPass(t *testing.T) {
	g := NewGenerator("secret")
	for _, status := range []models.BookingStatus{
		models.BookingStatusCanceled,
		models.BookingStatusNoShow,
		models.BookingStatusCompleted,
		models.BookingStatusFailed,
	} {
		b := activeBooking()
		b.Status = status
		_, err := g.PNG(b)
		assert.ErrorIs(t, err, ErrInactive, status)
	}
}

func TestPNG(t *testing.T) {
	png, err := NewGenerator("secret").PNG(activeBooking())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
