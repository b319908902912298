package pubfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/hash"
)

func TestPublicationStringRoundTrip(t *testing.T) {
	im, err := hash.New(hash.SHA256, []byte("calendar-root"))
	require.NoError(t, err)

	s := EncodePublicationString(1398910800, im)
	gotTime, gotImprint, err := DecodePublicationString(s)
	require.NoError(t, err)
	require.Equal(t, uint64(1398910800), gotTime)
	require.True(t, gotImprint.Equal(im))
}

func TestDecodePublicationStringRejectsBadCRC(t *testing.T) {
	im, err := hash.New(hash.SHA256, []byte("calendar-root"))
	require.NoError(t, err)
	s := EncodePublicationString(1398910800, im)

	// The leading characters encode the zero high bytes of the time, so
	// s[0] is already 'A'; replace it with a different character.
	tampered := "B" + s[1:]
	_, _, err = DecodePublicationString(tampered)
	require.Error(t, err)
}

func TestFindByString(t *testing.T) {
	f := buildFile(t)
	s := f.PublicationRecs[0].PublicationString()

	rec, err := f.FindByString(s)
	require.NoError(t, err)
	require.Equal(t, f.PublicationRecs[0].PublicationTime, rec.PublicationTime)

	im2, err := hash.New(hash.SHA256, []byte("unrelated"))
	require.NoError(t, err)
	_, err = f.FindByString(EncodePublicationString(1, im2))
	require.Error(t, err)
}
