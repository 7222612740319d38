/*
Package kds provides functions to retrieve endorsement material from AMD's
Key Distribution Service (KDS).

The following information is retrieved from the KDS:
  - VCEK certificates for a given chip ID and TCB
  - The ASK/ARK signing chain for a product line

The retrieved certificates form the SEV-SNP certificate hierarchy:

	┌───────────────┐
	│  ARK (root)   │──Signs──┐
	└───────┬───────┘         │
	        │                 ▼
	      Signs        ┌───────────────┐
	        │          │   ARK (self)  │
	        ▼          └───────────────┘
	┌───────────────┐
	│      ASK      │
	└───────┬───────┘
	        │
	      Signs
	        │
	        ▼
	┌───────────────┐
	│     VCEK      │
	└───────────────┘

The ARK is AMD's self-signed root of trust. Callers should pin the ARK they
retrieve against a known-good copy before using the chain for verification.

VCEK certificates are keyed by the chip ID and the TCB version of the
platform that produced a report, so the certificate returned for a report's
reported TCB endorses exactly the firmware state the report claims.
*/
package kds

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/edgelesssys/go-snp-guest/verification/crypto"
	"github.com/edgelesssys/go-snp-guest/verification/types"
	"k8s.io/utils/clock"
)

const (
	// ProductMilan selects the certificate hierarchy for 3rd Gen AMD EPYC (Milan) CPUs.
	ProductMilan = "Milan"
	// ProductGenoa selects the certificate hierarchy for 4th Gen AMD EPYC (Genoa) CPUs.
	ProductGenoa = "Genoa"
	// ProductTurin selects the certificate hierarchy for 5th Gen AMD EPYC (Turin) CPUs.
	ProductTurin = "Turin"

	// baseURL is the host of AMD's KDS.
	baseURL = "kdsintf.amd.com"
	// vcekPath is the path prefix for VCEK certificate requests.
	vcekPath = "vcek/v1"
	// certChainPath is the path suffix for the ASK/ARK chain of a product line.
	certChainPath = "cert_chain"
	// The KDS identifies VCEK certificates by the SPL (security patch level)
	// values of the TCB components, passed as query parameters.
	bootLoaderSPLQuery = "blSPL"
	teeSPLQuery        = "teeSPL"
	snpSPLQuery        = "snpSPL"
	microcodeSPLQuery  = "ucodeSPL"
)

type kdsAPI interface {
	getFromKDS(ctx context.Context, uri *url.URL) ([]byte, error)
}

// Client retrieves certificates from AMD's KDS.
type Client struct {
	api   kdsAPI
	clock clock.PassiveClock
}

// New returns a new KDS Client.
func New() *Client {
	return &Client{
		api:   &kdsAPIClient{client: http.DefaultClient},
		clock: clock.RealClock{},
	}
}

// GetVCEK retrieves the VCEK certificate for the given product, chip ID, and
// TCB version from AMD's KDS. Pass the report's reported TCB so the returned
// certificate endorses the firmware state the report was signed under.
func (c *Client) GetVCEK(ctx context.Context, product string, chipID [64]byte, tcb types.TCBVersion) (*x509.Certificate, error) {
	url := getKDSURL(product, hex.EncodeToString(chipID[:]))
	query := url.Query()
	query.Set(bootLoaderSPLQuery, fmt.Sprintf("%d", tcb.BootLoader))
	query.Set(teeSPLQuery, fmt.Sprintf("%d", tcb.TEE))
	query.Set(snpSPLQuery, fmt.Sprintf("%d", tcb.SNP))
	query.Set(microcodeSPLQuery, fmt.Sprintf("%d", tcb.Microcode))
	url.RawQuery = query.Encode()

	vcekRaw, err := c.api.getFromKDS(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("getting VCEK certificate from KDS: %w", err)
	}

	vcek, err := x509.ParseCertificate(vcekRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing VCEK certificate from DER: %w", err)
	}
	if err := c.checkValidity(vcek); err != nil {
		return nil, fmt.Errorf("checking VCEK certificate validity: %w", err)
	}

	return vcek, nil
}

// GetCertChain retrieves the ASK and ARK certificates for the given product
// from AMD's KDS.
func (c *Client) GetCertChain(ctx context.Context, product string) (ask, ark *x509.Certificate, err error) {
	url := getKDSURL(product, certChainPath)

	chainRaw, err := c.api.getFromKDS(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("getting certificate chain from KDS: %w", err)
	}

	chain, err := crypto.ParsePEMCertificateChain(chainRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing certificate chain from PEM: %w", err)
	}
	if len(chain) != 2 {
		return nil, nil, fmt.Errorf("unexpected number of certificates in chain: expected 2, got: %d", len(chain))
	}

	// The KDS returns the ASK first and the self-signed ARK second.
	ask, ark = chain[0], chain[1]
	if err := ask.CheckSignatureFrom(ark); err != nil {
		return nil, nil, fmt.Errorf("verifying ASK certificate signature using ARK certificate: %w", err)
	}
	for _, cert := range chain {
		if err := c.checkValidity(cert); err != nil {
			return nil, nil, fmt.Errorf("checking certificate validity: %w", err)
		}
	}

	return ask, ark, nil
}

// checkValidity checks that the certificate's validity window contains the
// current time.
func (c *Client) checkValidity(cert *x509.Certificate) error {
	now := c.clock.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate %q is not valid before %s", cert.Subject.CommonName, cert.NotBefore)
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate %q expired at %s", cert.Subject.CommonName, cert.NotAfter)
	}
	return nil
}

type kdsAPIClient struct {
	client *http.Client
}

// getFromKDS sends a request to AMD's KDS and returns the response body.
func (c *kdsAPIClient) getFromKDS(ctx context.Context, uri *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %s", resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return respBody, nil
}

// getKDSURL returns a URL to connect to the KDS for the given product and path.
func getKDSURL(product, requestPath string) *url.URL {
	return &url.URL{
		Scheme: "https",
		Host:   baseURL,
		Path:   path.Join(vcekPath, product, requestPath),
	}
}
