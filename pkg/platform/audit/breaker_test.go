package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"verigate/pkg/platform/clock"
)

func TestSinkBreaker_Defaults(t *testing.T) {
	b := newSinkBreaker(0, 0, nil)
	assert.False(t, b.open())
	assert.True(t, b.allow())
	assert.Equal(t, defaultBreakerThreshold, b.threshold)
	assert.Equal(t, defaultBreakerCooldown, b.cooldown)
}

func TestSinkBreaker_OpensAfterThreshold(t *testing.T) {
	b := newSinkBreaker(3, time.Minute, nil)

	b.failure()
	b.failure()
	assert.False(t, b.open())

	b.failure()
	assert.True(t, b.open())
	assert.False(t, b.allow())
}

func TestSinkBreaker_SuccessResetsFailures(t *testing.T) {
	b := newSinkBreaker(2, time.Minute, nil)
	b.failure()
	b.success()
	b.failure()
	assert.False(t, b.open())
}

func TestSinkBreaker_SingleTrialAfterCooldown(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := newSinkBreaker(2, 30*time.Second, fake.Clock())
	b.failure()
	b.failure()
	assert.False(t, b.allow())

	fake.Advance(30 * time.Second)
	assert.True(t, b.allow(), "first batch after cooldown is a trial")
	assert.False(t, b.allow(), "no second batch while the trial is pending")

	b.failure()
	assert.False(t, b.allow(), "a failed trial reopens immediately")

	fake.Advance(30 * time.Second)
	assert.True(t, b.allow())
	b.success()
	assert.False(t, b.open())
	assert.True(t, b.allow())
}
