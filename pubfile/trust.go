package pubfile

import (
	"crypto/x509"
	"strings"

	"github.com/ekobi/goksi/ksierr"
)

// TrustStore resolves the certificate that signed a publications file and
// decides whether its identity is acceptable. Kept as an interface (rather
// than a concrete x509.CertPool wrapper) so callers can plug an OS trust
// store, a pinned single CA, or a test fixture.
type TrustStore interface {
	// Verify checks leaf against the store's trust anchors, returning an
	// error if it does not chain to a trusted root.
	Verify(leaf *x509.Certificate) error
}

// PoolTrustStore is a TrustStore backed by a standard library CertPool; no
// third-party X.509 library improves on crypto/x509 for chain verification
// against a fixed root set.
type PoolTrustStore struct {
	Roots *x509.CertPool
}

func (p PoolTrustStore) Verify(leaf *x509.Certificate) error {
	if p.Roots == nil {
		return ksierr.New(ksierr.PKICertificateNotTrusted, "trust store has no configured roots")
	}
	_, err := leaf.Verify(x509.VerifyOptions{Roots: p.Roots, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny}})
	if err != nil {
		return ksierr.New(ksierr.PKICertificateNotTrusted, err.Error())
	}
	return nil
}

// Verify validates the signed prefix against the embedded signature's
// signing certificate, checks that the certificate chains to the store's
// trust anchors, and checks the certificate's subject email against
// expectedIssuer. The signature block is parsed as a bare DER certificate
// followed by a raw signature, not a full PKCS#7/CMS structure (see
// DESIGN.md for why).
func (f *File) Verify(store TrustStore, expectedIssuer string) error {
	return VerifySignatureBlock(store, f.signedPrefix, f.signatureDER, expectedIssuer)
}

// VerifySignatureBlock checks a [2-byte cert length][DER cert][raw
// signature] block against signedData, exported so package policy can
// apply the same scheme to a CalendarAuthRecord's SignatureDER without
// reaching into this package's unexported fields.
func VerifySignatureBlock(store TrustStore, signedData, block []byte, expectedIssuer string) error {
	certDER, sig, err := splitSignatureBlock(block)
	if err != nil {
		return err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return ksierr.New(ksierr.InvalidPKISignature, "cannot parse signing certificate: "+err.Error())
	}
	if err := store.Verify(cert); err != nil {
		return err
	}
	if expectedIssuer != "" && !hasSubjectEmail(cert, expectedIssuer) {
		return ksierr.New(ksierr.PKICertificateNotTrusted, "signing certificate subject email does not match configured issuer")
	}
	if err := cert.CheckSignature(x509.SHA256WithRSA, signedData, sig); err != nil {
		return ksierr.New(ksierr.InvalidPKISignature, err.Error())
	}
	return nil
}

// splitSignatureBlock parses the signature TLV payload as a length-prefixed
// certificate followed by the raw signature bytes.
func splitSignatureBlock(b []byte) (certDER, sig []byte, err error) {
	if len(b) < 2 {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "signature block too short")
	}
	certLen := int(b[0])<<8 | int(b[1])
	if len(b) < 2+certLen {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "signature block truncated")
	}
	return b[2 : 2+certLen], b[2+certLen:], nil
}

func hasSubjectEmail(cert *x509.Certificate, email string) bool {
	for _, e := range cert.EmailAddresses {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}
