package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteIsNewSession(t *testing.T) {
	route := NewRoute(DefaultRoute)

	tests := []struct {
		path string
		want bool
	}{
		{"/wd/hub/session", true},
		{"/wd/hub/session/", true},
		{"/wd/hub/session//", true},
		{"/wd/hub/session?foo=bar", true},
		{"/wd/hub/session/123", false},
		{"/wd/hub/session/123/url", false},
		{"/wd/hub/sessions", false},
		{"/status", false},
		{"/other/wd/hub/session", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, route.IsNewSession(tt.path))
		})
	}
}

func TestRouteSessionID(t *testing.T) {
	route := NewRoute(DefaultRoute)

	tests := []struct {
		name   string
		path   string
		wantID string
		wantOK bool
	}{
		{"bare id", "/wd/hub/session/123", "123", true},
		{"command", "/wd/hub/session/123/screenshot", "123", true},
		{"nested command", "/wd/hub/session/abc/element/7/click", "abc", true},
		{"doubled slash before id", "/wd/hub/session//123", "123", true},
		{"query ignored", "/wd/hub/session/abc/url?x=1", "abc", true},
		{"collection", "/wd/hub/session", "", false},
		{"trailing slashes", "/wd/hub/session//", "", false},
		{"unrelated path", "/status", "", false},
		{"substring of another route", "/wd/hub/sessionfoo/123", "", false},
		{"route not at start", "/proxy/wd/hub/session/123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := route.SessionID(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNewRouteNormalizes(t *testing.T) {
	assert.Equal(t, "/session", NewRoute("session/").String())
	assert.Equal(t, DefaultRoute, NewRoute("").String())
	assert.Equal(t, DefaultRoute, Route{}.String())

	grid4 := NewRoute("/session")
	assert.True(t, grid4.IsNewSession("/session"))
	id, ok := grid4.SessionID("/session/f00/url")
	assert.True(t, ok)
	assert.Equal(t, "f00", id)
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "url", LastSegment("/wd/hub/session/abc/url"))
	assert.Equal(t, "url", LastSegment("/wd/hub/session/abc/url/"))
	assert.Equal(t, "url", LastSegment("/wd/hub/session/abc/url?q=1"))
	assert.Equal(t, "session", LastSegment("/wd/hub/session"))
	assert.Equal(t, "", LastSegment("/"))
}
