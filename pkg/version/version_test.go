package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	tests := []struct {
		name  string
		check func(string) bool
	}{
		{
			name:  "Set",
			check: func(v string) bool { return v != "" },
		},
		{
			name:  "SemverPrefix",
			check: func(v string) bool { return strings.HasPrefix(v, "v") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(Version) {
				t.Errorf("Version = %q failed %s", Version, tt.name)
			}
		})
	}
}
