package cli

import (
	"fmt"
	"net/url"
	"strings"
)

// apiPrefix is where the HTTP adapter mounts resources.
const apiPrefix = "/api"

// resourceTarget is a resource URL split into the path below /api and its
// query arguments.
type resourceTarget struct {
	Path  string
	Query url.Values
}

// parseTarget accepts a full URL ("http://host/api/bands?limit=2"), an
// absolute path ("/api/bands") or a bare resource path ("bands/2/people").
func parseTarget(arg string) (*resourceTarget, error) {
	u, err := url.Parse(strings.TrimSpace(arg))
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL %q: %w", arg, err)
	}
	path := "/" + strings.TrimLeft(u.Path, "/")
	if path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/") {
		path = strings.TrimPrefix(path, apiPrefix)
	}
	if path == "" {
		path = "/"
	}
	return &resourceTarget{Path: path, Query: u.Query()}, nil
}

// RequestURI is the in-process request target for the HTTP adapter.
func (t *resourceTarget) RequestURI() string {
	u := &url.URL{Path: apiPrefix + t.Path, RawQuery: t.Query.Encode()}
	return u.RequestURI()
}
