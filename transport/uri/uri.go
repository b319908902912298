// Package uri splits and recomposes the service URIs a Context is
// configured with, recognizing the ksi/ksi+http/ksi+https/ksi+tcp/http/
// https/file scheme set.
package uri

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ekobi/goksi/ksierr"
)

// Parts is the decomposed form of a service URI:
// scheme://[user[:pass]@]host[:port][/path][?query][#fragment].
type Parts struct {
	Scheme   string
	User     string
	Pass     string
	Host     string
	Port     string
	Path     string
	Query    string
	Fragment string
}

var validSchemes = map[string]bool{
	"ksi": true, "ksi+http": true, "ksi+https": true, "ksi+tcp": true,
	"http": true, "https": true, "file": true,
}

// EffectiveScheme resolves the "ksi without suffix defaults to HTTP" rule.
func (p Parts) EffectiveScheme() string {
	if p.Scheme == "ksi" {
		return "http"
	}
	return strings.TrimPrefix(p.Scheme, "ksi+")
}

// Split parses raw into its component parts, rejecting unrecognized
// schemes.
func Split(raw string) (Parts, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parts{}, ksierr.New(ksierr.InvalidArgument, "malformed uri: "+err.Error())
	}
	if !validSchemes[u.Scheme] {
		return Parts{}, ksierr.New(ksierr.InvalidArgument, "unrecognized uri scheme: "+u.Scheme)
	}
	p := Parts{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Path:     u.Path,
		Query:    u.RawQuery,
		Fragment: u.Fragment,
	}
	if u.User != nil {
		p.User = u.User.Username()
		p.Pass, _ = u.User.Password()
	}
	return p, nil
}

// Compose re-renders p as a canonical URI string. Split(Compose(p)) ==
// p for any Parts produced by Split.
func Compose(p Parts) string {
	var b strings.Builder
	b.WriteString(p.Scheme)
	b.WriteString("://")
	if p.User != "" {
		if p.Pass != "" {
			b.WriteString(url.UserPassword(p.User, p.Pass).String())
		} else {
			b.WriteString(url.User(p.User).String())
		}
		b.WriteString("@")
	}
	b.WriteString(p.Host)
	if p.Port != "" {
		b.WriteString(":")
		b.WriteString(p.Port)
	}
	b.WriteString(p.Path)
	if p.Query != "" {
		b.WriteString("?")
		b.WriteString(p.Query)
	}
	if p.Fragment != "" {
		b.WriteString("#")
		b.WriteString(p.Fragment)
	}
	return b.String()
}

// String implements fmt.Stringer for debug output.
func (p Parts) String() string {
	return fmt.Sprintf("%s host=%s port=%s path=%s", p.Scheme, p.Host, p.Port, p.Path)
}
