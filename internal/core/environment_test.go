package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"production", Production},
		{"staging", Staging},
		{"testing", Testing},
		{"development", Development},
		{"", Development},
		{"bogus", Development},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseEnvironment(tt.in), tt.in)
	}
}

func TestEnvironmentPredicates(t *testing.T) {
	assert.True(t, Production.IsProduction())
	assert.False(t, Production.IsDevelopment())
	assert.True(t, ParseEnvironment("anything-else").IsDevelopment())
}
