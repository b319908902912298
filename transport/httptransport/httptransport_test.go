package httptransport

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/transport"
)

func TestPerformEchoesRequestBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, contentType, r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	tr, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	h, err := tr.OpenHandle(transport.KindSign)
	require.NoError(t, err)
	h.SetRequestBytes([]byte("ping"))
	require.NoError(t, h.Perform(context.Background()))
	require.Equal(t, []byte("ping"), h.GetResponseBytes())
}

func TestPerformSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, err := New(srv.URL, time.Second)
	require.NoError(t, err)
	tr.User, tr.Pass = "alice", "s3cret"

	h, err := tr.OpenHandle(transport.KindSign)
	require.NoError(t, err)
	h.SetRequestBytes(nil)
	require.NoError(t, h.Perform(context.Background()))
	require.Equal(t, "alice", gotUser)
	require.Equal(t, "s3cret", gotPass)
}

func TestPerformDecompressesGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerEncoding, "gzip")
		w.WriteHeader(http.StatusOK)
		gz := gzip.NewWriter(w)
		gz.Write([]byte("decompressed"))
		gz.Close()
	}))
	defer srv.Close()

	tr, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	h, err := tr.OpenHandle(transport.KindSign)
	require.NoError(t, err)
	h.SetRequestBytes(nil)
	require.NoError(t, h.Perform(context.Background()))
	require.Equal(t, []byte("decompressed"), h.GetResponseBytes())
}

func TestPerformReturnsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	h, err := tr.OpenHandle(transport.KindSign)
	require.NoError(t, err)
	h.SetRequestBytes(nil)
	require.Error(t, h.Perform(context.Background()))
}
