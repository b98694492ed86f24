package service

import (
	"testing"
	"time"

	"center/helpers"

	"github.com/stretchr/testify/assert"
)

func TestNewTimeProvider_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "service.time_provider.go: now is required", func() {
		NewTimeProvider(nil)
	})
}

func TestTimeProvider_Now(t *testing.T) {
	calls := 0
	tp := NewTimeProvider(func() time.Time {
		calls++
		return helpers.TestNow()
	})
	assert.Equal(t, helpers.TestNow(), tp.Now())
	assert.Equal(t, helpers.TestNow(), tp.Now())
	assert.Equal(t, 2, calls)
}
