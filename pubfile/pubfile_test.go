package pubfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/hash"
)

func buildFile(t *testing.T) *File {
	t.Helper()
	digest, err := hash.New(hash.SHA256, []byte("calendar-root"))
	require.NoError(t, err)
	return &File{
		Version:      1,
		CreationTime: 1398866256,
		CertRecords:  []CertRecord{{CertID: "01", CertDER: []byte("fake-der")}},
		PublicationRecs: []PublicationRecord{
			{PublicationTime: 1398910800, PublishedHash: digest},
		},
		signatureDER: []byte("fake-signature"),
	}
}

func TestParseRejectsMissingMagic(t *testing.T) {
	_, err := Parse([]byte("not-a-pubfile"))
	require.Error(t, err)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	f := buildFile(t)
	buf, err := f.Encode()
	require.NoError(t, err)

	got, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, f.Version, got.Version)
	require.Equal(t, f.CreationTime, got.CreationTime)
	require.Len(t, got.PublicationRecs, 1)
	require.True(t, got.PublicationRecs[0].PublishedHash.Equal(f.PublicationRecs[0].PublishedHash))
	require.Equal(t, f.signatureDER, got.signatureDER)
}

func TestParseRejectsMissingSignature(t *testing.T) {
	f := buildFile(t)
	f.signatureDER = nil
	buf, err := f.Encode()
	require.NoError(t, err)
	_, err = Parse(buf)
	require.Error(t, err)
}

func TestParseRejectsEmptyPublicationRecords(t *testing.T) {
	f := buildFile(t)
	f.PublicationRecs = nil
	buf, err := f.Encode()
	require.NoError(t, err)
	_, err = Parse(buf)
	require.Error(t, err)
}

func TestFindAtOrAfterAndLatest(t *testing.T) {
	f := buildFile(t)
	digest2, err := hash.New(hash.SHA256, []byte("later-root"))
	require.NoError(t, err)
	f.PublicationRecs = append(f.PublicationRecs, PublicationRecord{
		PublicationTime: 1399000000, PublishedHash: digest2,
	})

	latest, err := f.Latest()
	require.NoError(t, err)
	require.Equal(t, uint64(1399000000), latest.PublicationTime)

	rec, err := f.FindAtOrAfter(1398900000)
	require.NoError(t, err)
	require.Equal(t, uint64(1398910800), rec.PublicationTime)

	_, err = f.FindAtOrAfter(1400000000)
	require.Error(t, err)
}
