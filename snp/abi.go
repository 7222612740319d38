package snp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/edgelesssys/go-snp-guest/verification/types"
)

// ErrInvalidVMPL is returned when a request names a VM Permission Level the
// firmware does not define.
var ErrInvalidVMPL = errors.New("VMPL out of range")

// GuestDevice is the path to the SEV-SNP guest device.
const GuestDevice = "/dev/sev-guest"

const (
	// msgVersion is the message version for SNP guest requests.
	msgVersion = 1
	// maxVMPL is the highest VM Permission Level a report may be requested for.
	maxVMPL = 3

	// Request and response buffer sizes of the SEV-SNP guest ABI.
	// https://github.com/torvalds/linux/blob/master/include/uapi/linux/sev-guest.h
	reportReqSize     = 96
	extReportReqSize  = 112
	reportRspSize     = 4000
	derivedKeyReqSize = 40
	derivedKeyRspSize = 64
)

// device is a handle to the SEV-SNP guest device.
type device interface {
	Fd() uintptr
}

// FirmwareError is a status code returned by the SEV-SNP firmware.
type FirmwareError uint32

// Firmware status codes.
// https://www.amd.com/system/files/TechDocs/56860.pdf, Chapter 9.1.
const (
	FirmwareErrSuccess      FirmwareError = 0x00
	FirmwareErrInvalidParam FirmwareError = 0x16
)

func (e FirmwareError) Error() string {
	switch e {
	case FirmwareErrSuccess:
		return "success"
	case FirmwareErrInvalidParam:
		return "firmware error INVALID_PARAM (0x16)"
	default:
		return fmt.Sprintf("firmware error 0x%x", uint32(e))
	}
}

// ReportReq is a request for an attestation report.
type ReportReq struct {
	// ReportData is included verbatim in the report's report data field.
	ReportData [64]byte
	// VMPL is the VM Permission Level to attest. Must not exceed 3.
	VMPL uint32
}

// NewReportReq creates an attestation report request for the given user data.
// User data may not be longer than 64 bytes and is zero padded to the right.
func NewReportReq(userData []byte, vmpl uint32) (*ReportReq, error) {
	if len(userData) > 64 {
		return nil, fmt.Errorf("user data must not be longer than 64 bytes, received %d bytes", len(userData))
	}
	if vmpl > maxVMPL {
		return nil, fmt.Errorf("%w: must not exceed %d, got %d", ErrInvalidVMPL, maxVMPL, vmpl)
	}

	req := &ReportReq{VMPL: vmpl}
	copy(req.ReportData[:], userData)
	return req, nil
}

// marshal returns the request in the guest ABI's wire format.
func (r *ReportReq) marshal() [reportReqSize]byte {
	var raw [reportReqSize]byte
	copy(raw[0:64], r.ReportData[:])
	binary.LittleEndian.PutUint32(raw[64:68], r.VMPL)
	// raw[68:96] is reserved and stays zero.
	return raw
}

// ExtReportReq is a request for an attestation report together with the
// certificates the host cached for the platform's endorsement key.
type ExtReportReq struct {
	Data ReportReq
	// CertsAddress is the guest address the host writes the certificate
	// table to. The all-ones address requests no certificate data.
	CertsAddress uint64
	// CertsLen is the size of the buffer at CertsAddress in bytes. The host
	// updates it to the required size if the buffer is too small.
	CertsLen uint32
}

// NewExtReportReq creates an extended report request that requests no
// certificate data. Set CertsAddress and CertsLen to receive certificates.
func NewExtReportReq(data *ReportReq) *ExtReportReq {
	return &ExtReportReq{
		Data:         *data,
		CertsAddress: math.MaxUint64,
		CertsLen:     0,
	}
}

func (r *ExtReportReq) marshal() [extReportReqSize]byte {
	var raw [extReportReqSize]byte
	data := r.Data.marshal()
	copy(raw[0:reportReqSize], data[:])
	binary.LittleEndian.PutUint64(raw[96:104], r.CertsAddress)
	binary.LittleEndian.PutUint32(raw[104:108], r.CertsLen)
	// raw[108:112] is padding.
	return raw
}

// ReportRsp is the firmware's response to a report request.
type ReportRsp struct {
	// Status is the firmware status code for the request.
	Status FirmwareError
	// ReportSize is the size of the returned report in bytes.
	ReportSize uint32
	// Report is the raw attestation report.
	Report [types.ReportSize]byte
}

// parseReportRsp parses a report response from the guest ABI's wire format.
func parseReportRsp(raw [reportRspSize]byte) (*ReportRsp, error) {
	rsp := &ReportRsp{
		Status:     FirmwareError(binary.LittleEndian.Uint32(raw[0:4])),
		ReportSize: binary.LittleEndian.Uint32(raw[4:8]),
	}
	if rsp.Status != FirmwareErrSuccess {
		return rsp, rsp.Status
	}
	if rsp.ReportSize != types.ReportSize {
		return rsp, fmt.Errorf("firmware returned report of %d bytes, expected %d", rsp.ReportSize, types.ReportSize)
	}
	copy(rsp.Report[:], raw[32:32+types.ReportSize])
	return rsp, nil
}

// DerivedKeyReq is a request for a key derived from platform secrets.
type DerivedKeyReq struct {
	// UseVMRK selects the Virtual Machine Root Key as key root instead of
	// the Versioned Chip Endorsement Key.
	UseVMRK bool
	// GuestFieldSelect chooses which guest fields are mixed into the key.
	GuestFieldSelect types.GuestFieldSelect
	// VMPL is the VM Permission Level to mix into the key. Must not exceed
	// the VMPL the guest is running at.
	VMPL uint32
	// GuestSVN is the guest SVN to mix into the key. Must not exceed the
	// guest's current SVN.
	GuestSVN uint32
	// TCBVersion is the TCB version to mix into the key. Must not exceed
	// the platform's committed TCB.
	TCBVersion uint64
	// LaunchMitVector is the launch mitigation vector to mix into the key.
	// Leave nil unless the firmware supports it.
	LaunchMitVector *uint64
}

func (r *DerivedKeyReq) marshal() [derivedKeyReqSize]byte {
	var raw [derivedKeyReqSize]byte
	if r.UseVMRK {
		binary.LittleEndian.PutUint32(raw[0:4], 1)
	}
	// raw[4:8] is reserved and stays zero.
	binary.LittleEndian.PutUint64(raw[8:16], uint64(r.GuestFieldSelect))
	binary.LittleEndian.PutUint32(raw[16:20], r.VMPL)
	binary.LittleEndian.PutUint32(raw[20:24], r.GuestSVN)
	binary.LittleEndian.PutUint64(raw[24:32], r.TCBVersion)
	if r.LaunchMitVector != nil {
		binary.LittleEndian.PutUint64(raw[32:40], *r.LaunchMitVector)
	}
	return raw
}

// DerivedKeyRsp is the firmware's response to a derived key request.
type DerivedKeyRsp struct {
	Status FirmwareError
	Key    [32]byte
}

func parseDerivedKeyRsp(raw [derivedKeyRspSize]byte) (*DerivedKeyRsp, error) {
	rsp := &DerivedKeyRsp{
		Status: FirmwareError(binary.LittleEndian.Uint32(raw[0:4])),
	}
	if rsp.Status != FirmwareErrSuccess {
		return rsp, rsp.Status
	}
	copy(rsp.Key[:], raw[32:64])
	return rsp, nil
}
