package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollUntilSucceeds(t *testing.T) {
	calls := 0
	v, ok, err := PollUntil(context.Background(), time.Second, time.Millisecond, func() (string, bool, error) {
		calls++
		return "found", calls == 3, nil
	})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "found", v)
	assert.Equal(t, 3, calls)
}

func TestPollUntilTimesOut(t *testing.T) {
	_, ok, err := PollUntil(context.Background(), time.Millisecond*20, time.Millisecond*5, func() (int, bool, error) {
		return 0, false, nil
	})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPollUntilStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, ok, err := PollUntil(context.Background(), time.Second, time.Millisecond, func() (int, bool, error) {
		return 0, false, boom
	})
	assert.Equal(t, boom, err)
	assert.False(t, ok)
}
