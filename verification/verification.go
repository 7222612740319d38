/*
# AMD SEV-SNP Attestation Report Verification

This package provides a simple interface to verify AMD SEV-SNP attestation
reports against the platform's Versioned Chip Endorsement Key (VCEK).

Attestation of an SEV-SNP report follows these steps:

  - Parse the raw report and read the chip ID and reported TCB from it.

  - Retrieve the VCEK certificate and the ASK/ARK signing chain from AMD's
    Key Distribution Service (KDS).

  - Verify the VCEK certificate chain up to the AMD Root Key (ARK), which the
    caller trusts.

  - Hash the signed span of the report (everything before the signature block)
    with SHA-384 and verify the embedded ECDSA P-384 signature against the
    VCEK public key.

Use [Verifier.VerifyReport] and [Verifier.VerifyVEKCert] directly if you want
to handle certificate retrieval yourself, e.g. for VLEK-signed reports or
certificates delivered through the extended report request.
*/
package verification

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/edgelesssys/go-snp-guest/verification/crypto"
	"github.com/edgelesssys/go-snp-guest/verification/kds"
	"github.com/edgelesssys/go-snp-guest/verification/types"
)

var (
	// ErrMalformedKey is returned when the endorsement key cannot be used for
	// report verification, e.g. because it is not an ECDSA P-384 key.
	ErrMalformedKey = errors.New("malformed endorsement key")

	// ErrMalformedSignature is returned when the report's signature field
	// cannot hold a valid signature, e.g. because the report is unsigned or
	// declares an unknown signature algorithm.
	ErrMalformedSignature = errors.New("malformed report signature")
)

// VerificationError is returned for any report that fails verification.
// Callers must treat every VerificationError as "do not trust this report";
// the wrapped error only serves logging and auditing. It is distinct from
// parse errors so that "this isn't even a report" and "this report is not
// authentic" stay distinguishable.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("report verification failed: %s", e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Verifier verifies SEV-SNP attestation reports.
type Verifier struct {
	kdsClient *kds.Client
}

// New creates a new Verifier retrieving endorsement material from AMD's KDS.
func New() *Verifier {
	return &Verifier{kdsClient: kds.New()}
}

// Verify parses and verifies a raw VCEK-signed attestation report.
// product names the CPU generation the report was produced on, e.g. "Milan".
//
// This is the high level API function that handles retrieval of the VCEK
// certificate chain from AMD's KDS. Use [Verifier.VerifyReport] and
// [Verifier.VerifyVEKCert] if you want to handle certificate retrieval and
// chain verification yourself.
func (v *Verifier) Verify(ctx context.Context, rawReport []byte, product string) error {
	report, err := types.ParseReport(rawReport)
	if err != nil {
		return fmt.Errorf("parsing attestation report: %w", err)
	}

	if key := report.KeyInfo().SigningKey(); key != types.SigningKeyVCEK {
		return fmt.Errorf("report is signed with %s, only VCEK certificates can be retrieved from KDS", key)
	}

	vcek, err := v.kdsClient.GetVCEK(ctx, product, report.ChipID(), report.ReportedTCB())
	if err != nil {
		return fmt.Errorf("getting VCEK certificate: %w", err)
	}
	ask, ark, err := v.kdsClient.GetCertChain(ctx, product)
	if err != nil {
		return fmt.Errorf("getting ASK/ARK certificate chain: %w", err)
	}

	if err := v.VerifyVEKCert(vcek, ask, ark); err != nil {
		return fmt.Errorf("verifying VCEK certificate: %w", err)
	}

	return v.VerifyReport(report, vcek)
}

// VerifyReport verifies that the report was signed by the endorsement key
// certified in vekCert. The certificate is assumed to be trust-anchored
// already; use [Verifier.VerifyVEKCert] to establish that.
func (v *Verifier) VerifyReport(report types.AttestationReport, vekCert *x509.Certificate) error {
	// Resolves the report's version variant and with it guards every accessor
	// below, so it must come first.
	measurable, err := report.MeasurableBytes()
	if err != nil {
		return &VerificationError{Err: fmt.Errorf("computing measurable bytes: %w", err)}
	}

	if algo := report.SignatureAlgo(); algo != types.SignatureAlgoECDSAP384SHA384 {
		return &VerificationError{Err: fmt.Errorf("%w: unsupported signature algorithm %d", ErrMalformedSignature, algo)}
	}
	if report.KeyInfo().SigningKey() == types.SigningKeyNone {
		return &VerificationError{Err: fmt.Errorf("%w: report is not signed", ErrMalformedSignature)}
	}

	publicKey, ok := vekCert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return &VerificationError{Err: fmt.Errorf("%w: certificate does not hold an ECDSA key", ErrMalformedKey)}
	}
	if publicKey.Curve != elliptic.P384() {
		return &VerificationError{Err: fmt.Errorf("%w: key is on curve %s, expected P-384", ErrMalformedKey, publicKey.Curve.Params().Name)}
	}

	signature := report.Signature()
	if err := crypto.VerifyReportSignature(publicKey, measurable[:], signature.R, signature.S); err != nil {
		return &VerificationError{Err: err}
	}
	return nil
}

// VerifyVEKCert verifies that the VCEK/VLEK certificate is signed by the AMD
// SEV key (ASK or ASVK), and that key by the AMD root key (ARK). The ARK
// certificate is assumed to be trusted and should be compared by the caller
// against a known-good AMD root.
func (v *Verifier) VerifyVEKCert(vekCert, askCert, arkCert *x509.Certificate) error {
	rootPool := x509.NewCertPool()
	rootPool.AddCert(arkCert)
	intermediatePool := x509.NewCertPool()
	intermediatePool.AddCert(askCert)

	if _, err := vekCert.Verify(x509.VerifyOptions{
		Roots:         rootPool,
		Intermediates: intermediatePool,
	}); err != nil {
		return fmt.Errorf("verifying endorsement key certificate chain: %w", err)
	}
	return nil
}
