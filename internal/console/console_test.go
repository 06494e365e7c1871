package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Revlin", "Revlin"},
		{"Revlin McAwesome", `"Revlin McAwesome"`},
		{"", ""},
		{" leading", `" leading"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteName(tt.in))
	}
}
