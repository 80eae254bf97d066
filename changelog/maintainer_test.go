package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaintainer(t *testing.T) {
	system := func() identity {
		return identity{gecos: "John Smith,,,", username: "john", mailname: "example.com"}
	}
	tests := []struct {
		name      string
		env       map[string]string
		wantName  string
		wantEmail string
	}{
		{"debemail with name", map[string]string{"DEBEMAIL": "Jane Doe <jane@example.org>"}, "Jane Doe", "jane@example.org"},
		{"email and name", map[string]string{"EMAIL": "j@example.org", "NAME": "J"}, "J", "j@example.org"},
		{"email with name", map[string]string{"EMAIL": "Jo <jo@example.org>"}, "Jo", "jo@example.org"},
		{"debemail wins", map[string]string{
			"DEBEMAIL":    "jane@example.org",
			"DEBFULLNAME": "Jane",
			"EMAIL":       "Other <other@example.org>",
		}, "Jane", "jane@example.org"},
		{"system", nil, "John Smith", "john@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			}
			name, email := maintainerFrom(lookup, system)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}
