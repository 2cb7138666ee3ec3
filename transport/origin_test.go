package transport

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckOrigin(t *testing.T) {
	req := require.New(t)

	req.Nil(CheckOrigin(nil))

	allowAll := CheckOrigin([]string{"*"})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")
	req.True(allowAll(r))

	check := CheckOrigin([]string{"https://Chat.Example.com/", "not an origin"})
	for origin, want := range map[string]bool{
		"https://chat.example.com":      true,
		"HTTPS://CHAT.EXAMPLE.COM/path": true,
		"http://chat.example.com":       false,
		"https://chat.example.com:8443": false,
		"":                              false,
	} {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		req.Equal(want, check(r), origin)
	}
}
