package utils

import "testing"

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://dash.example.com"}

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://dash.example.com", true},
		{"https://dash.example.com/", true}, // trailing slash normalized
		{"https://DASH.example.com", true},  // case-insensitive
		{"https://evil.example.com", false},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8090", true},
		{"http://192.168.1.50", true},
		{"http://10.0.0.5:8080", true},
		{"http://mediabox.local", true},
		{"http://nas", true}, // single-label LAN hostname
		{"http://8.8.8.8", false},
		{"https://attacker.com", false},
		{"", false},
		{"not a url", false},
	}

	for _, tc := range cases {
		if got := IsAllowedOrigin(tc.origin, allowed); got != tc.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}

func TestIsAllowedOrigin_NoAllowList(t *testing.T) {
	if !IsAllowedOrigin("http://localhost:5173", nil) {
		t.Fatal("localhost should always be trusted")
	}
	if IsAllowedOrigin("https://public.example.com", nil) {
		t.Fatal("public origins need an allow-list entry")
	}
}
