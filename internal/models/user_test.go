package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	u := &User{Username: "amina", Password: "correct-horse"}
	require.NoError(t, u.HashPassword())

	assert.NotEqual(t, "correct-horse", u.Password)
	assert.NoError(t, u.CheckPassword("correct-horse"))
	assert.Error(t, u.CheckPassword("wrong-horse"))
}

func TestBookingStatusTerminal(t *testing.T) {
	for _, s := range ActiveStatuses {
		assert.False(t, s.IsTerminal(), "status %s", s)
	}
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired} {
		assert.True(t, s.IsTerminal(), "status %s", s)
	}
}

func TestIDListRoundTrip(t *testing.T) {
	l := IDList{3, 7, 12}
	v, err := l.Value()
	require.NoError(t, err)

	var out IDList
	require.NoError(t, out.Scan(v))
	assert.Equal(t, l, out)

	var empty IDList
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}
