package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data Privacy & Protection Act", "data-privacy-protection-act"},
		{"H.R. 1234 (118th Congress)", "h-r-1234-118th-congress"},
		{"Résumé Modernisation Étude", "resume-modernisation-etude"},
		{"  --Trailing  junk--  ", "trailing-junk"},
		{"already-a-slug", "already-a-slug"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}
