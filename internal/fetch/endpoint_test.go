package fetch

import (
	"errors"
	"testing"
)

// TestEndpointURL tests target encoding.
func TestEndpointURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		target string
		want   string
	}{
		{
			name:   "query style prefix",
			prefix: "https://corsproxy.io/?",
			target: "https://example.com/a?b=c&d=e",
			want:   "https://corsproxy.io/?https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc%26d%3De",
		},
		{
			name:   "parameter style prefix",
			prefix: "https://api.allorigins.win/raw?url=",
			target: "http://example.com/x y",
			want:   "https://api.allorigins.win/raw?url=http%3A%2F%2Fexample.com%2Fx%20y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := (Endpoint{Prefix: tt.prefix}).URL(tt.target); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParseEndpoints tests endpoint validation.
func TestParseEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("keeps order", func(t *testing.T) {
		t.Parallel()

		got, err := ParseEndpoints([]string{"https://b.example/?", " https://a.example/raw?url= "})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"https://b.example/?", "https://a.example/raw?url="}
		prefixes := Prefixes(got)
		for i := range want {
			if prefixes[i] != want[i] {
				t.Errorf("endpoint %d = %q, want %q", i, prefixes[i], want[i])
			}
		}
	})

	t.Run("rejects non-http prefixes", func(t *testing.T) {
		t.Parallel()

		for _, p := range []string{"", "ftp://relay.example/", "relay.example/?"} {
			if _, err := ParseEndpoints([]string{p}); !errors.Is(err, ErrInvalidEndpoint) {
				t.Errorf("ParseEndpoints(%q): expected ErrInvalidEndpoint, got %v", p, err)
			}
		}
	})
}
