package bookmarks

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://EXAMPLE.COM/Path", "http://example.com/Path"},
		{"strips default http port", "http://example.com:80/x", "http://example.com/x"},
		{"strips default https port", "https://example.com:443/x", "https://example.com/x"},
		{"keeps custom port", "http://example.com:8080/x", "http://example.com:8080/x"},
		{"keeps https port on http", "http://example.com:443/x", "http://example.com:443/x"},
		{"drops fragment", "https://example.com/x#frag", "https://example.com/x"},
		{"keeps query", "https://example.com/x?b=2&a=1", "https://example.com/x?b=2&a=1"},
		{"path case significant", "https://example.com/CaseMatters", "https://example.com/CaseMatters"},
		{"non-http scheme untouched port", "ftp://Example.com:21/file", "ftp://example.com:21/file"},
		{"schemeless verbatim", "example.com/x", "example.com/x"},
		{"unparseable verbatim", "http://exa mple.com/%zz", "http://exa mple.com/%zz"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeURL(tc.in); got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
