package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale_Breakpoints(t *testing.T) {
	tests := []struct {
		name      string
		taskCount int
		want      Shape
	}{
		{"zero", 0, Shape{Workers: 1, PerWorker: 1}},
		{"one", 1, Shape{Workers: 1, PerWorker: 1}},
		{"two", 2, Shape{Workers: 1, PerWorker: 1}},
		{"three", 3, Shape{Workers: 2, PerWorker: 2}},
		{"ten", 10, Shape{Workers: 2, PerWorker: 2}},
		{"eleven", 11, Shape{Workers: 4, PerWorker: 3}},
		{"fifty", 50, Shape{Workers: 4, PerWorker: 3}},
		{"two_hundred", 200, Shape{Workers: 6, PerWorker: 4}},
		{"large", 5000, Shape{Workers: 8, PerWorker: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Scale(tt.taskCount, 30, 4))
		})
	}
}

func TestScale_ClampsToGlobalMax(t *testing.T) {
	// 8x4 = 32 would exceed a global cap of 16; workers shrink until the
	// product fits.
	s := Scale(1000, 16, 4)
	assert.LessOrEqual(t, s.InFlight(), 16)
	assert.GreaterOrEqual(t, s.Workers, 1)

	// Tight cap forces a single slot.
	s = Scale(1000, 1, 4)
	assert.Equal(t, 1, s.InFlight())
}

func TestScale_ClampsPerWorker(t *testing.T) {
	s := Scale(100, 30, 2)
	assert.Equal(t, 2, s.PerWorker)
}
