// Package crypto implements common crypto operations used to verify SEV-SNP attestation reports.
package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// ErrSignatureInvalid is returned when a signature does not match the signed
// data under the given public key.
var ErrSignatureInvalid = errors.New("signature verification failed")

// VerifyReportSignature verifies an ECDSA P-384 signature over the SHA-384
// digest of data. r and s are the firmware's little-endian, zero-extended
// 72-byte signature components.
func VerifyReportSignature(publicKey crypto.PublicKey, data []byte, r, s [72]byte) error {
	signingKey, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("public key is not an ECDSA key")
	}
	if signingKey.Curve != elliptic.P384() {
		return fmt.Errorf("public key is on curve %s, expected P-384", signingKey.Curve.Params().Name)
	}

	// SetBytes expects big-endian input, the firmware writes little-endian.
	rBig := new(big.Int).SetBytes(reverseBytes(r[:]))
	sBig := new(big.Int).SetBytes(reverseBytes(s[:]))

	digest := sha512.Sum384(data)
	if !ecdsa.Verify(signingKey, digest[:], rBig, sBig) {
		return ErrSignatureInvalid
	}
	return nil
}

// reverseBytes returns a reversed copy of b.
func reverseBytes(b []byte) []byte {
	reversed := make([]byte, len(b))
	for i := range b {
		reversed[i] = b[len(b)-i-1]
	}
	return reversed
}

// ParsePEMCertificateChain parses a certificate chain from a PEM-encoded byte slice.
func ParsePEMCertificateChain(certChainPEM []byte) ([]*x509.Certificate, error) {
	var signingChain []*x509.Certificate
	for block, rest := pem.Decode(certChainPEM); block != nil; block, rest = pem.Decode(rest) {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate from PEM: %w", err)
		}

		signingChain = append(signingChain, cert)
	}
	return signingChain, nil
}

// MustParsePEMCertificate parses a single certificate from a PEM-encoded byte slice.
// If multiple certificates are present, only the first one is returned.
// It panics if the certificate is invalid or the PEM data contains no certificates.
func MustParsePEMCertificate(certPEM []byte) *x509.Certificate {
	certs, err := ParsePEMCertificateChain(certPEM)
	if err != nil {
		panic(err)
	}
	if len(certs) == 0 {
		panic("expected at least one certificate")
	}
	return certs[0]
}
