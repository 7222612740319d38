package kds

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/edgelesssys/go-snp-guest/verification/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	testclock "k8s.io/utils/clock/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testIssueDate = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func TestGetVCEK(t *testing.T) {
	chipID := [64]byte{0xA0, 0xA1, 0xA2}
	tcb := types.TCBVersion{BootLoader: 3, SNP: 8, Microcode: 115}

	testCases := map[string]struct {
		api     *fakeAPI
		time    time.Time
		wantErr bool
	}{
		"success": {
			api:  newFakeAPI(t),
			time: testIssueDate,
		},
		"kds error": {
			api: func() *fakeAPI {
				api := newFakeAPI(t)
				api.requestErr = errors.New("failed")
				return api
			}(),
			time:    testIssueDate,
			wantErr: true,
		},
		"certificate expired": {
			api:     newFakeAPI(t),
			time:    testIssueDate.Add(24 * 365 * 50 * time.Hour), // 50 years later
			wantErr: true,
		},
		"certificate not yet valid": {
			api:     newFakeAPI(t),
			time:    time.Time{},
			wantErr: true,
		},
		"invalid DER": {
			api: func() *fakeAPI {
				api := newFakeAPI(t)
				api.vcekDER = []byte("not a certificate")
				return api
			}(),
			time:    testIssueDate,
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client := &Client{
				api:   tc.api,
				clock: testclock.NewFakeClock(tc.time),
			}

			vcek, err := client.GetVCEK(context.Background(), ProductMilan, chipID, tcb)
			if tc.wantErr {
				assert.Error(err)
				return
			}

			assert.NoError(err)
			assert.NotNil(vcek)
		})
	}
}

func TestGetVCEKRequestURL(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	api := newFakeAPI(t)
	client := &Client{
		api:   api,
		clock: testclock.NewFakeClock(testIssueDate),
	}

	chipID := [64]byte{0xA0, 0xA1, 0xA2}
	tcb := types.TCBVersion{BootLoader: 3, TEE: 0, SNP: 8, Microcode: 115}
	_, err := client.GetVCEK(context.Background(), ProductMilan, chipID, tcb)
	require.NoError(err)

	require.Len(api.requestedURLs, 1)
	uri := api.requestedURLs[0]
	assert.Equal("kdsintf.amd.com", uri.Host)
	assert.True(strings.HasPrefix(uri.Path, "vcek/v1/Milan/a0a1a2"), uri.Path)
	query := uri.Query()
	assert.Equal("3", query.Get("blSPL"))
	assert.Equal("0", query.Get("teeSPL"))
	assert.Equal("8", query.Get("snpSPL"))
	assert.Equal("115", query.Get("ucodeSPL"))
}

func TestGetCertChain(t *testing.T) {
	testCases := map[string]struct {
		api     *fakeAPI
		time    time.Time
		wantErr bool
	}{
		"success": {
			api:  newFakeAPI(t),
			time: testIssueDate,
		},
		"kds error": {
			api: func() *fakeAPI {
				api := newFakeAPI(t)
				api.requestErr = errors.New("failed")
				return api
			}(),
			time:    testIssueDate,
			wantErr: true,
		},
		"chain expired": {
			api:     newFakeAPI(t),
			time:    testIssueDate.Add(24 * 365 * 50 * time.Hour), // 50 years later
			wantErr: true,
		},
		"single certificate": {
			api: func() *fakeAPI {
				api := newFakeAPI(t)
				api.chainPEM = api.chainPEM[:strings.Index(string(api.chainPEM), "-----END CERTIFICATE-----")+len("-----END CERTIFICATE-----")]
				return api
			}(),
			time:    testIssueDate,
			wantErr: true,
		},
		"ask and ark swapped": {
			api: func() *fakeAPI {
				api := newFakeAPI(t)
				askPEM := api.chainPEM[:strings.Index(string(api.chainPEM), "-----END CERTIFICATE-----")+len("-----END CERTIFICATE-----")+1]
				api.chainPEM = append(api.chainPEM[len(askPEM):], askPEM...)
				return api
			}(),
			time:    testIssueDate,
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client := &Client{
				api:   tc.api,
				clock: testclock.NewFakeClock(tc.time),
			}

			ask, ark, err := client.GetCertChain(context.Background(), ProductMilan)
			if tc.wantErr {
				assert.Error(err)
				return
			}

			assert.NoError(err)
			assert.NotNil(ask)
			assert.NotNil(ark)
			assert.Equal("SEV-Test", ask.Subject.CommonName)
			assert.Equal("ARK-Test", ark.Subject.CommonName)
		})
	}
}

type fakeAPI struct {
	vcekDER       []byte
	chainPEM      []byte
	requestErr    error
	requestedURLs []*url.URL
}

// newFakeAPI builds a KDS double serving a freshly generated ARK/ASK/VCEK
// hierarchy, valid around testIssueDate.
func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	require := require.New(t)

	arkKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(err)
	askKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(err)
	vcekKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(err)

	arkTemplate := testCertTemplate("ARK-Test", true)
	arkDER, err := x509.CreateCertificate(rand.Reader, arkTemplate, arkTemplate, &arkKey.PublicKey, arkKey)
	require.NoError(err)
	ark, err := x509.ParseCertificate(arkDER)
	require.NoError(err)

	askDER, err := x509.CreateCertificate(rand.Reader, testCertTemplate("SEV-Test", true), ark, &askKey.PublicKey, arkKey)
	require.NoError(err)
	ask, err := x509.ParseCertificate(askDER)
	require.NoError(err)

	vcekDER, err := x509.CreateCertificate(rand.Reader, testCertTemplate("SEV-VCEK", false), ask, &vcekKey.PublicKey, askKey)
	require.NoError(err)

	chainPEM := append(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: askDER}),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: arkDER})...,
	)

	return &fakeAPI{
		vcekDER:  vcekDER,
		chainPEM: chainPEM,
	}
}

func (f *fakeAPI) getFromKDS(_ context.Context, uri *url.URL) ([]byte, error) {
	f.requestedURLs = append(f.requestedURLs, uri)
	if f.requestErr != nil {
		return nil, f.requestErr
	}

	if strings.HasSuffix(uri.Path, certChainPath) {
		return f.chainPEM, nil
	}
	return f.vcekDER, nil
}

func testCertTemplate(commonName string, isCA bool) *x509.Certificate {
	serial, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             testIssueDate.Add(-time.Hour),
		NotAfter:              testIssueDate.Add(5 * 365 * 24 * time.Hour),
		IsCA:                  isCA,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
}
