package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/wd/hub/status", nil)
	r.RemoteAddr = "192.0.2.7:41000"
	r.Header.Set("Connection", "keep-alive, X-Hop")
	r.Header.Set("X-Hop", "secret")
	r.Header.Set("Keep-Alive", "timeout=5")
	r.Header.Set("Proxy-Authorization", "Basic Zm9v")
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Authorization", "Basic YmFy")
	r.Header.Set("Content-Type", "application/json")

	h := forwardHeaders(r)

	for _, name := range []string{"Connection", "X-Hop", "Keep-Alive", "Proxy-Authorization", "Upgrade"} {
		assert.Empty(t, h.Values(name), name)
	}
	assert.Equal(t, "Basic YmFy", h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "192.0.2.7", h.Get("X-Forwarded-For"))

	// the inbound request is left alone
	assert.Equal(t, "secret", r.Header.Get("X-Hop"))
}

func TestForwardHeadersExtendsForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:41000"
	r.Header.Add("X-Forwarded-For", "10.0.0.1")
	r.Header.Add("X-Forwarded-For", "10.0.0.2")

	h := forwardHeaders(r)
	assert.Equal(t, []string{"10.0.0.1, 10.0.0.2, 192.0.2.7"}, h.Values("X-Forwarded-For"))
}

func TestForwardHeadersWithoutPeer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = ""

	h := forwardHeaders(r)
	assert.Empty(t, h.Values("X-Forwarded-For"))
}

func TestForwardHeadersKeepsTrailersTE(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Te", "gzip, trailers")

	h := forwardHeaders(r)
	assert.Equal(t, "trailers", h.Get("Te"))

	r.Header.Set("Te", "gzip")
	h = forwardHeaders(r)
	assert.Empty(t, h.Get("Te"))
}

func TestCopyResponseHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Connection", "close")
	src.Set("Content-Type", "application/json; charset=utf-8")
	src.Add("Set-Cookie", "a=1")
	src.Add("Set-Cookie", "b=2")
	src.Set("Keep-Alive", "timeout=5")

	dst := http.Header{}
	copyResponseHeaders(dst, src)

	assert.Empty(t, dst.Values("Connection"))
	assert.Equal(t, "application/json; charset=utf-8", dst.Get("Content-Type"))
	assert.Equal(t, []string{"a=1", "b=2"}, dst.Values("Set-Cookie"))
	// only Connection is dropped on the way back
	assert.Equal(t, "timeout=5", dst.Get("Keep-Alive"))
}

func TestPeerIP(t *testing.T) {
	assert.Equal(t, "192.0.2.7", peerIP("192.0.2.7:80"))
	assert.Equal(t, "::1", peerIP("[::1]:8080"))
	assert.Empty(t, peerIP("not-an-address"))
	assert.Empty(t, peerIP(""))
}
