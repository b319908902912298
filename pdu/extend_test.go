package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/signature"
)

func TestExtendRequestEncodeV1AndV2(t *testing.T) {
	req := &ExtendRequest{RequestID: 3, AggrTime: 1398866256, PubTime: 1398910800, HasPubTime: true}

	v1, err := EncodeExtendRequest(V1, nil, req, nil)
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	v2, err := EncodeExtendRequest(V2, &Header{ClientID: "tester"}, req, nil)
	require.NoError(t, err)
	require.NotEmpty(t, v2)
	require.NotEqual(t, v1, v2)
}

func TestExtendResponseRoundTrip(t *testing.T) {
	input, err := hash.New(hash.SHA256, []byte("aggregation-root"))
	require.NoError(t, err)
	sibling, err := hash.New(hash.SHA256, []byte("cal-sibling"))
	require.NoError(t, err)

	chain := &signature.CalendarChain{
		InputImprint:    input,
		AggregationTime: 1398866256,
		PublicationTime: 1398910800,
		Links:           []signature.CalendarLink{{Direction: signature.Left, Sibling: sibling}},
	}
	resp := &ExtendResponse{RequestID: 3, HasRequestID: true, CalChain: chain}

	buf, err := EncodeExtendResponse(V2, nil, resp, nil)
	require.NoError(t, err)

	_, decoded, err := DecodeExtendResponse(V2, buf, nil)
	require.NoError(t, err)
	require.NotNil(t, decoded.CalChain)
	require.True(t, decoded.CalChain.InputImprint.Equal(input))
	require.Equal(t, chain.PublicationTime, decoded.CalChain.PublicationTime)
}

func TestExtendResponseErrorStatus(t *testing.T) {
	resp := &ExtendResponse{Status: 101, ErrorMessage: "unknown aggregation time"}
	buf, err := EncodeExtendResponse(V2, nil, resp, nil)
	require.NoError(t, err)

	_, decoded, err := DecodeExtendResponse(V2, buf, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(101), decoded.Status)
	require.Equal(t, "unknown aggregation time", decoded.ErrorMessage)
}
