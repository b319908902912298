// Package httptransport implements transport.Transport over net/http: a
// cookie-jar-bearing http.Client with a bounded redirect policy,
// basic-auth credentials carried from the configured URI, and optional
// response-body decompression.
package httptransport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/publicsuffix"

	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/transport"
)

const (
	maxRedirects   = 3
	contentType    = "application/ksi-request"
	userAgent      = "goksi-client"
	headerEncoding = "Content-Encoding"
)

var errNoRedirect = errors.New("refused to follow redirect")

// Transport posts requests to a single aggregator/extender/publications
// endpoint over HTTP(S).
type Transport struct {
	URL         string
	User, Pass  string
	Timeout     time.Duration
	Compress    bool
	client      *http.Client
}

// New builds an httptransport.Transport targeting url.
func New(url string, timeout time.Duration) (*Transport, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Transport{
		URL:     url,
		Timeout: timeout,
		client: &http.Client{
			Jar:           jar,
			Timeout:       timeout,
			CheckRedirect: redirectPolicy,
		},
	}, nil
}

func redirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errNoRedirect
	}
	return nil
}

func (t *Transport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	return &handle{t: t}, nil
}

func (t *Transport) Close() error { return nil }

type handle struct {
	t        *Transport
	request  []byte
	response []byte
}

func (h *handle) SetRequestBytes(b []byte) { h.request = b }
func (h *handle) GetRequestBytes() []byte  { return h.request }
func (h *handle) GetResponseBytes() []byte { return h.response }

func (h *handle) Perform(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.t.URL, bytes.NewReader(h.request))
	if err != nil {
		return ksierr.New(ksierr.IOError, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	if h.t.User != "" {
		req.SetBasicAuth(h.t.User, h.t.Pass)
	}
	if h.t.Compress {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	resp, err := h.t.client.Do(req)
	if err != nil {
		return ksierr.New(ksierr.NetworkTimeout, err.Error())
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if resp.Header.Get(headerEncoding) == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return ksierr.New(ksierr.IOError, err.Error())
		}
		defer gz.Close()
		r = gz
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return ksierr.New(ksierr.IOError, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return ksierr.NewExt(ksierr.HTTPError, resp.StatusCode, "aggregator/extender returned non-200 status")
	}
	h.response = body
	return nil
}
