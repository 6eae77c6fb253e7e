package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	birth := time.Date(1960, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		atDate time.Time
		want   int
	}{
		{"day before birthday", time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), 64},
		{"on birthday", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 65},
		{"after birthday", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), 65},
		{"early in year", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Age(birth, tt.atDate))
		})
	}
}

func TestAgeAtYearEnd(t *testing.T) {
	birth := time.Date(1960, 12, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 65, AgeAtYearEnd(birth, 2025))
	assert.Equal(t, 0, AgeAtYearEnd(birth, 1960))
}

func TestFullRetirementAge(t *testing.T) {
	tests := []struct {
		birthYear int
		want      int
	}{
		{1935, 65},
		{1940, 65},
		{1950, 66},
		{1957, 66},
		{1960, 67},
		{1975, 67},
	}

	for _, tt := range tests {
		birth := time.Date(tt.birthYear, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.want, FullRetirementAge(birth), "birth year %d", tt.birthYear)
	}
}

func TestGetRMDAge(t *testing.T) {
	assert.Equal(t, 72, GetRMDAge(1949))
	assert.Equal(t, 72, GetRMDAge(1950))
	assert.Equal(t, 73, GetRMDAge(1955))
	assert.Equal(t, 73, GetRMDAge(1959))
	assert.Equal(t, 75, GetRMDAge(1960))
	assert.Equal(t, 75, GetRMDAge(1980))
}
