package services

import (
	"errors"
	"net/url"
	"strings"
)

// LinkBuilder renders the public URLs that carry raw secrets.
type LinkBuilder struct {
	base string
}

// NewLinkBuilder validates baseURL and returns a builder rooted at it.
func NewLinkBuilder(baseURL string) (*LinkBuilder, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("links: base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("links: base url must be absolute")
	}
	return &LinkBuilder{base: baseURL}, nil
}

// AcceptInvite returns <base>/accept-invite?token=<raw>.
func (b *LinkBuilder) AcceptInvite(rawToken string) string {
	return b.build("/accept-invite", rawToken)
}

// ResetPassword returns <base>/reset-password?token=<raw>.
func (b *LinkBuilder) ResetPassword(rawToken string) string {
	return b.build("/reset-password", rawToken)
}

func (b *LinkBuilder) build(path, rawToken string) string {
	query := url.Values{}
	query.Set("token", rawToken)
	return b.base + path + "?" + query.Encode()
}
