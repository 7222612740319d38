//go:build linux
// +build linux

// Package snp provides functionality to interact with the AMD SEV-SNP guest device.
package snp

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/vtolstov/go-ioctl"
	"golang.org/x/sys/unix"
)

// Open opens a handle to the SEV-SNP guest device.
func Open() (*os.File, error) {
	return os.Open(GuestDevice)
}

// IOCTL calls for SNP guest requests.
// https://github.com/torvalds/linux/blob/master/include/uapi/linux/sev-guest.h
var (
	getReport     = ioctl.IOWR('S', 0x0, 32)
	getDerivedKey = ioctl.IOWR('S', 0x1, 32)
	getExtReport  = ioctl.IOWR('S', 0x2, 32)
)

// The host signals problems with the certificate buffer of an extended
// report request in the upper 32 bits of exitinfo2.
const vmmErrInvalidLen = 1

// certsBufferSize is the initial size of the certificate buffer for extended
// report requests. Hosts typically cache a VCEK/ASK/ARK chain of under two
// pages; the buffer grows if the host asks for more.
const certsBufferSize = 4 * 4096

/*
guestRequest is the structure passed to the SNP guest device's ioctls.

	struct snp_guest_request_ioctl {
	       __u8  msg_version;
	       __u64 req_data;
	       __u64 resp_data;
	       union {
	               __u64 exitinfo2;
	               ...
	       };
	};
*/
type guestRequest struct {
	msgVersion uint8
	_          [7]byte
	reqData    uint64
	respData   uint64
	exitInfo2  uint64
}

// GetReport requests an attestation report for the given user data from the
// SEV-SNP firmware. User data may not be longer than 64 bytes. vmpl selects
// the VM Permission Level the report attests and must not exceed 3.
func GetReport(snp device, userData []byte, vmpl uint32) ([]byte, error) {
	req, err := NewReportReq(userData, vmpl)
	if err != nil {
		return nil, err
	}

	reqBuf := req.marshal()
	var rspBuf [reportRspSize]byte
	if _, err := guestRequestIOCTL(snp, getReport, reqBuf[:], rspBuf[:]); err != nil {
		return nil, fmt.Errorf("requesting report: %w", err)
	}

	rsp, err := parseReportRsp(rspBuf)
	if err != nil {
		return nil, fmt.Errorf("parsing report response: %w", err)
	}
	return rsp.Report[:], nil
}

// GetExtendedReport requests an attestation report together with the
// certificate table the host cached for the platform's endorsement key.
// The certificate table is returned as raw bytes in the host's table format.
func GetExtendedReport(snp device, userData []byte, vmpl uint32) (report, certs []byte, err error) {
	req, err := NewReportReq(userData, vmpl)
	if err != nil {
		return nil, nil, err
	}

	certsBuf := make([]byte, certsBufferSize)
	for {
		extReq := NewExtReportReq(req)
		extReq.CertsAddress = uint64(uintptr(unsafe.Pointer(&certsBuf[0])))
		extReq.CertsLen = uint32(len(certsBuf))

		reqBuf := extReq.marshal()
		var rspBuf [reportRspSize]byte
		exitInfo2, err := guestRequestIOCTL(snp, getExtReport, reqBuf[:], rspBuf[:])
		if err != nil {
			// The host updates the request's certs_len field to the
			// required buffer size if ours was too small.
			if uint32(exitInfo2>>32) == vmmErrInvalidLen {
				certsBuf = make([]byte, binary.LittleEndian.Uint32(reqBuf[104:108]))
				continue
			}
			return nil, nil, fmt.Errorf("requesting extended report: %w", err)
		}

		rsp, err := parseReportRsp(rspBuf)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing report response: %w", err)
		}
		return rsp.Report[:], certsBuf, nil
	}
}

// GetDerivedKey requests a key derived from platform secrets from the
// SEV-SNP firmware. The returned key is stable across boots for the same
// request parameters as long as the mixed-in platform state is unchanged.
func GetDerivedKey(snp device, req *DerivedKeyReq) ([32]byte, error) {
	if req.VMPL > maxVMPL {
		return [32]byte{}, fmt.Errorf("%w: must not exceed %d, got %d", ErrInvalidVMPL, maxVMPL, req.VMPL)
	}

	reqBuf := req.marshal()
	var rspBuf [derivedKeyRspSize]byte
	if _, err := guestRequestIOCTL(snp, getDerivedKey, reqBuf[:], rspBuf[:]); err != nil {
		return [32]byte{}, fmt.Errorf("requesting derived key: %w", err)
	}

	rsp, err := parseDerivedKeyRsp(rspBuf)
	if err != nil {
		return [32]byte{}, fmt.Errorf("parsing derived key response: %w", err)
	}
	return rsp.Key, nil
}

// guestRequestIOCTL issues a guest request against the SNP guest device and
// returns the request's exitinfo2 value. On failure, the firmware status
// from exitinfo2 takes precedence over the raw errno.
func guestRequestIOCTL(snp device, cmd uintptr, req, rsp []byte) (uint64, error) {
	guestReq := guestRequest{
		msgVersion: msgVersion,
		reqData:    uint64(uintptr(unsafe.Pointer(&req[0]))),
		respData:   uint64(uintptr(unsafe.Pointer(&rsp[0]))),
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, snp.Fd(), cmd, uintptr(unsafe.Pointer(&guestReq))); errno != 0 {
		if fwErr := FirmwareError(guestReq.exitInfo2); fwErr != FirmwareErrSuccess {
			return guestReq.exitInfo2, fwErr
		}
		return guestReq.exitInfo2, fmt.Errorf("snp guest request: %w", errno)
	}
	return guestReq.exitInfo2, nil
}
