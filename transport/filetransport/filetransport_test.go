package filetransport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/transport"
)

func TestPerformReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publications.bin")
	want := []byte("KSIPUBLF-fake-body")
	require.NoError(t, os.WriteFile(path, want, 0o644))

	tr := New(path)
	h, err := tr.OpenHandle(transport.KindPublications)
	require.NoError(t, err)

	require.NoError(t, h.Perform(context.Background()))
	require.Equal(t, want, h.GetResponseBytes())
}

func TestOpenHandleRejectsNonPublicationsKind(t *testing.T) {
	tr := New("/dev/null")
	_, err := tr.OpenHandle(transport.KindSign)
	require.Error(t, err)
}

func TestPerformRejectsOversizeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publications.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, maxFileSize+1), 0o644))

	tr := New(path)
	h, err := tr.OpenHandle(transport.KindPublications)
	require.NoError(t, err)

	err = h.Perform(context.Background())
	require.Error(t, err)
}

func TestPerformMissingFile(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "missing.bin"))
	h, err := tr.OpenHandle(transport.KindPublications)
	require.NoError(t, err)

	require.Error(t, h.Perform(context.Background()))
}
