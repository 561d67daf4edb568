package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeYear(t *testing.T) {
	tests := []struct {
		local int
		want  time.Time
	}{
		{1395, time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{1403, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{0, time.Date(621, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{-10, time.Date(611, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := NormalizeYear(tt.local)
		assert.Equal(t, tt.want, got, "local year %d", tt.local)
		assert.Equal(t, tt.local, LocalYear(got))
	}
}

func TestNormalizeYear_Deterministic(t *testing.T) {
	assert.Equal(t, NormalizeYear(1399), NormalizeYear(1399))
	assert.Equal(t, 2016, NormalizeYear(1395).Year())
}
