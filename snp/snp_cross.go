//go:build !linux
// +build !linux

// Package snp provides functionality to interact with the AMD SEV-SNP guest device.
package snp

import (
	"errors"
	"os"
)

// Open opens a handle to the SEV-SNP guest device.
func Open() (*os.File, error) {
	return nil, errors.New("the SEV-SNP guest device is only available on linux")
}

// GetReport requests an attestation report for the given user data from the
// SEV-SNP firmware.
func GetReport(_ device, _ []byte, _ uint32) ([]byte, error) {
	return nil, errors.New("requesting attestation reports is only supported on linux")
}

// GetExtendedReport requests an attestation report together with the
// certificate table the host cached for the platform's endorsement key.
func GetExtendedReport(_ device, _ []byte, _ uint32) (report, certs []byte, err error) {
	return nil, nil, errors.New("requesting attestation reports is only supported on linux")
}

// GetDerivedKey requests a key derived from platform secrets from the
// SEV-SNP firmware.
func GetDerivedKey(_ device, _ *DerivedKeyReq) ([32]byte, error) {
	return [32]byte{}, errors.New("requesting derived keys is only supported on linux")
}
