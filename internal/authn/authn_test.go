package authn

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		mode       TrustProxy
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name: "none uses socket peer", mode: TrustProxyNone,
			remoteAddr: "203.0.113.7:4242",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.1"},
			want:       "203.0.113.7",
		},
		{
			name: "cloudflare uses CF header", mode: TrustProxyCloudflare,
			remoteAddr: "203.0.113.7:4242",
			headers:    map[string]string{"CF-Connecting-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name: "cloudflare without header falls back to peer", mode: TrustProxyCloudflare,
			remoteAddr: "203.0.113.7:4242",
			want:       "203.0.113.7",
		},
		{
			name: "any uses first XFF entry", mode: TrustProxyAny,
			remoteAddr: "203.0.113.7:4242",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.1"},
			want:       "198.51.100.9",
		},
		{
			name: "any without header falls back to peer", mode: TrustProxyAny,
			remoteAddr: "203.0.113.7:4242",
			want:       "203.0.113.7",
		},
		{
			name: "ipv6-mapped ipv4 is unwrapped", mode: TrustProxyNone,
			remoteAddr: "[::ffff:192.0.2.4]:9999",
			want:       "192.0.2.4",
		},
		{
			name: "plain ipv6 peer is preserved", mode: TrustProxyNone,
			remoteAddr: "[2001:db8::1]:9999",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.mode); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapIPv4Mapped(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"::ffff:10.0.0.1", "10.0.0.1"},
		{"10.0.0.1", "10.0.0.1"},
		{"2001:db8::1", "2001:db8::1"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := unwrapIPv4Mapped(tt.in); got != tt.want {
			t.Errorf("unwrapIPv4Mapped(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
