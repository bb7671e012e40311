// Package acquire turns request input (a URL or an uploaded byte stream)
// into a Source the converters can read.
package acquire

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	ErrInvalidSource = errors.New("invalid document source")
	ErrTooLarge      = errors.New("document exceeds size limit")
	ErrIO            = errors.New("document i/o failure")
)

// Source locates the raw document bytes. Exactly one of URL and Path is set.
type Source struct {
	URL         string
	Path        string
	Filename    string
	ContentType string
}

// IsRemote reports whether the document still has to be fetched.
func (s Source) IsRemote() bool {
	return s.URL != ""
}

// Name is used in logs and for extension based format detection.
func (s Source) Name() string {
	if s.Filename != "" {
		return s.Filename
	}
	if s.IsRemote() {
		if u, err := url.Parse(s.URL); err == nil {
			return path.Base(u.Path)
		}
		return s.URL
	}
	return path.Base(s.Path)
}

func (s Source) String() string {
	if s.IsRemote() {
		return s.URL
	}
	return s.Path
}

// FromURL passes the locator through unchanged. It is only checked for
// being an absolute http(s) URL; reachability is left to the converter.
func FromURL(raw string) (Source, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Source{}, fmt.Errorf("%w: source_url is empty", ErrInvalidSource)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Source{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
	if u.Host == "" {
		return Source{}, fmt.Errorf("%w: missing host", ErrInvalidSource)
	}
	return Source{URL: raw}, nil
}
