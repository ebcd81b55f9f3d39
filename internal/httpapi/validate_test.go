package httpapi

import "testing"

func TestTargetURLs(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		norm  string
	}{
		{"https://EXAMPLE.com/", true, "https://example.com"},
		{"HTTPS://example.com/health?x=1", true, "https://example.com/health?x=1"},
		{"http://example.com:80", true, "http://example.com"},
		{"https://example.com:443/", true, "https://example.com"},
		{"http://127.0.0.1:8080/ping", true, "http://127.0.0.1:8080/ping"},
		{"http://[::1]:80/", true, "http://[::1]"},
		{"https://[2001:DB8::1]:8443/x", true, "https://[2001:db8::1]:8443/x"},
		{"https://example.com/p/", true, "https://example.com/p/"},
		{"https://example.com/?q=1", true, "https://example.com/?q=1"},
		{"  https://padded.example  ", true, "https://padded.example"},
		{"ftp://x", false, ""},
		{"https://", false, ""},
		{"example.com", false, ""},
		{"", false, ""},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			if got := isValidHTTPURL(c.in); got != c.valid {
				t.Fatalf("valid=%v want %v", got, c.valid)
			}
			if !c.valid {
				return
			}
			if got := normalizeHTTPURL(c.in); got != c.norm {
				t.Fatalf("normalized=%q want %q", got, c.norm)
			}
		})
	}
}
