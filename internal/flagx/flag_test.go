package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-a", ":8080", "-x", "junk"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":8080"},
		},
		{
			name:    "equals form",
			args:    []string{"--dsn=postgres://x", "-a", ":8080"},
			allowed: []string{"--dsn"},
			want:    []string{"--dsn=postgres://x"},
		},
		{
			name:    "flag without value followed by another flag",
			args:    []string{"-v", "-a", ":8080"},
			allowed: []string{"-v", "-a"},
			want:    []string{"-v", "-a", ":8080"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", ":8080"},
			allowed: nil,
			want:    []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FilterArgs(tc.args, tc.allowed))
		})
	}
}
