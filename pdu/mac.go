package pdu

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/tlv"
)

// signAndAppendMAC re-encodes pdu with a trailing macTag element whose
// payload is HMAC-SHA256 over the encoded child elements that precede it;
// the PDU's own tag/length header and the MAC element itself are not
// covered.
func signAndAppendMAC(pdu *tlv.TLV, macTag uint16, key []byte) ([]byte, error) {
	children, err := pdu.Nested()
	if err != nil {
		return nil, err
	}
	body := tlv.NewComposite(pdu.Tag, pdu.NonCritical, pdu.Forward, children).Raw()
	mac := computeHMAC(key, body)
	macElem := tlv.New(macTag, false, false, mac)
	withMAC := tlv.NewComposite(pdu.Tag, pdu.NonCritical, pdu.Forward, append(append([]*tlv.TLV{}, children...), macElem))
	return withMAC.Encode(), nil
}

// verifyMAC recomputes the HMAC over every child preceding the MAC element
// tagged macTag and compares it in constant time.
func verifyMAC(pdu *tlv.TLV, macTag uint16, key []byte) error {
	children, err := pdu.Nested()
	if err != nil {
		return err
	}
	var body []*tlv.TLV
	var mac []byte
	for _, c := range children {
		if c.Tag == macTag {
			mac = c.Raw()
			continue
		}
		body = append(body, c)
	}
	if mac == nil {
		return ksierr.New(ksierr.ServiceInvalidPayload, "pdu missing mac element")
	}
	bodyTLV := tlv.NewComposite(pdu.Tag, pdu.NonCritical, pdu.Forward, body)
	want := computeHMAC(key, bodyTLV.Raw())
	if !hmac.Equal(mac, want) {
		return ksierr.New(ksierr.ServiceAuthenticationFailure, "pdu mac verification failed")
	}
	return nil
}

func computeHMAC(key, body []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(body)
	return h.Sum(nil)
}
