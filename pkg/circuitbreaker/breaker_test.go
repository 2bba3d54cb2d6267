package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestBreakerOpensAndRecovers(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	cb := New("redis", Config{FailureThreshold: 2, Timeout: time.Minute, now: clk.now})
	fail := errors.New("refused")

	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	cb := New("redis", Config{FailureThreshold: 1, Timeout: time.Second, now: clk.now})
	fail := errors.New("refused")

	_ = cb.Execute(func() error { return fail })
	assert.Equal(t, StateOpen, cb.State())

	clk.t = clk.t.Add(time.Second)
	assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	cb := New("redis", Config{FailureThreshold: 2})
	fail := errors.New("refused")

	_ = cb.Execute(func() error { return fail })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return fail })
	assert.Equal(t, StateClosed, cb.State())
}
