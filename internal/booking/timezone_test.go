package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) GetResourceTimezone(ctx context.Context, tenantID, resourceID string) (string, error) {
	args := m.Called(tenantID, resourceID)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) GetTenantTimezone(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(tenantID)
	return args.String(0), args.Error(1)
}

func TestResolveExplicitWins(t *testing.T) {
	reg := new(MockRegistry)
	r := NewTimezoneResolver(reg)

	tz, err := r.Resolve(context.Background(), "Europe/Berlin", "T1", "R1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", tz)
	reg.AssertNotCalled(t, "GetResourceTimezone", mock.Anything, mock.Anything)
	reg.AssertNotCalled(t, "GetTenantTimezone", mock.Anything)
}

func TestResolveResourceBeforeTenant(t *testing.T) {
	reg := new(MockRegistry)
	reg.On("GetResourceTimezone", "T1", "R1").Return("Asia/Tokyo", nil)
	r := NewTimezoneResolver(reg)

	tz, err := r.Resolve(context.Background(), "", "T1", "R1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", tz)
	reg.AssertNotCalled(t, "GetTenantTimezone", mock.Anything)
}

func TestResolveFallsBackToTenant(t *testing.T) {
	reg := new(MockRegistry)
	reg.On("GetResourceTimezone", "T1", "R1").Return("", nil)
	reg.On("GetTenantTimezone", "T1").Return("America/New_York", nil)
	r := NewTimezoneResolver(reg)

	tz, err := r.Resolve(context.Background(), "  ", "T1", "R1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", tz)
	reg.AssertExpectations(t)
}

func TestResolveTimezoneRequired(t *testing.T) {
	reg := new(MockRegistry)
	reg.On("GetResourceTimezone", "T1", "R1").Return("", nil)
	reg.On("GetTenantTimezone", "T1").Return("", nil)
	r := NewTimezoneResolver(reg)

	_, err := r.Resolve(context.Background(), "", "T1", "R1")
	assert.ErrorIs(t, err, ErrTimezoneRequired)
}

func TestResolveInvalidDoesNotFallThrough(t *testing.T) {
	reg := new(MockRegistry)
	reg.On("GetResourceTimezone", "T1", "R1").Return("Mars/Olympus_Mons", nil)
	r := NewTimezoneResolver(reg)

	_, err := r.Resolve(context.Background(), "", "T1", "R1")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
	reg.AssertNotCalled(t, "GetTenantTimezone", mock.Anything)

	_, err = r.Resolve(context.Background(), "Not/AZone", "T1", "R1")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestResolveRegistryError(t *testing.T) {
	reg := new(MockRegistry)
	reg.On("GetResourceTimezone", "T1", "R404").Return("", ErrUnknownResource)
	r := NewTimezoneResolver(reg)

	_, err := r.Resolve(context.Background(), "", "T1", "R404")
	assert.True(t, errors.Is(err, ErrUnknownResource))
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("UTC"))
	assert.NoError(t, ValidateTimezone("America/Argentina/Buenos_Aires"))
	assert.ErrorIs(t, ValidateTimezone(""), ErrInvalidTimezone)
	assert.ErrorIs(t, ValidateTimezone("Local"), ErrInvalidTimezone)
	assert.ErrorIs(t, ValidateTimezone("+05:30"), ErrInvalidTimezone)
}
