// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package handoff

import (
	"net/http"
	"net/url"

	"github.com/taibuivan/washpass/internal/platform/constants"
)

// # Locations

// StaticLocation is a Location over a plain URL, used by the CLI.
type StaticLocation struct {
	Current *url.URL
}

func (l *StaticLocation) URL() *url.URL { return l.Current }

func (l *StaticLocation) Replace(next *url.URL) { l.Current = next }

// RequestLocation is the Location of an in-flight page request. Replacing it
// rewrites r.URL for the rest of the chain and tells the shell which URL to
// show through the X-Replace-Url header, so no redirect round-trip happens.
type RequestLocation struct {
	w http.ResponseWriter
	r *http.Request
}

// NewRequestLocation wraps the current request.
func NewRequestLocation(w http.ResponseWriter, r *http.Request) *RequestLocation {
	return &RequestLocation{w: w, r: r}
}

func (l *RequestLocation) URL() *url.URL { return l.r.URL }

func (l *RequestLocation) Replace(next *url.URL) {
	l.r.URL = next
	l.r.RequestURI = next.RequestURI()
	l.w.Header().Set(constants.HeaderReplaceURL, next.RequestURI())
}
