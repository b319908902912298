package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/signature"
)

func TestAggregationRequestEncodeV2(t *testing.T) {
	docHash, err := hash.New(hash.SHA256, []byte("abc"))
	require.NoError(t, err)

	req := &AggregationRequest{RequestID: 7, RequestHash: docHash, RequestLevel: 2, HasLevel: true}
	hdr := &Header{InstanceID: 42, HasInst: true}

	buf, err := EncodeAggregationRequest(V2, hdr, req, nil)
	require.NoError(t, err)
	require.NotEmpty(t, buf)
}

func TestAggregationResponseRoundTripV2(t *testing.T) {
	docHash, err := hash.New(hash.SHA256, []byte("abc"))
	require.NoError(t, err)
	sibling, err := hash.New(hash.SHA256, []byte("sib"))
	require.NoError(t, err)

	sig := &signature.Signature{
		Chains: []*signature.AggregationChain{{
			Algorithm:       hash.SHA256,
			AggregationTime: 1398866256,
			InputImprint:    docHash,
			Links:           []signature.Link{{Direction: signature.Left, Sibling: sibling}},
		}},
	}

	resp := &AggregationResponse{RequestID: 7, HasRequestID: true, Signature: sig}
	buf, err := EncodeAggregationResponse(V2, nil, resp, nil)
	require.NoError(t, err)

	_, decoded, err := DecodeAggregationResponse(V2, buf, nil)
	require.NoError(t, err)
	require.True(t, decoded.HasRequestID)
	require.Equal(t, uint64(7), decoded.RequestID)
	require.NotNil(t, decoded.Signature)
	require.Len(t, decoded.Signature.Chains, 1)
	require.True(t, decoded.Signature.Chains[0].InputImprint.Equal(docHash))
}

func TestAggregationResponseRoundTripV1(t *testing.T) {
	resp := &AggregationResponse{Status: 0}
	docHash, err := hash.New(hash.SHA256, []byte("xyz"))
	require.NoError(t, err)
	resp.Signature = &signature.Signature{
		Chains: []*signature.AggregationChain{{
			Algorithm:    hash.SHA256,
			InputImprint: docHash,
		}},
	}

	buf, err := EncodeAggregationResponse(V1, nil, resp, nil)
	require.NoError(t, err)

	hdr, decoded, err := DecodeAggregationResponse(V1, buf, nil)
	require.NoError(t, err)
	require.Nil(t, hdr)
	require.NotNil(t, decoded.Signature)
}

func TestAggregationResponseWithMAC(t *testing.T) {
	key := []byte("shared-secret")
	resp := &AggregationResponse{Status: 0, ErrorMessage: ""}
	resp.RequestID, resp.HasRequestID = 1, true

	buf, err := EncodeAggregationResponse(V2, nil, resp, key)
	require.NoError(t, err)

	_, decoded, err := DecodeAggregationResponse(V2, buf, key)
	require.NoError(t, err)
	require.True(t, decoded.HasRequestID)

	_, _, err = DecodeAggregationResponse(V2, buf, []byte("wrong-key"))
	require.Error(t, err)
}

func TestDecodeAggregationResponseRejectsTrailingBytes(t *testing.T) {
	resp := &AggregationResponse{}
	buf, err := EncodeAggregationResponse(V2, nil, resp, nil)
	require.NoError(t, err)

	_, _, err = DecodeAggregationResponse(V2, append(buf, 0xff), nil)
	require.Error(t, err)
}
