package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

/*
   SEV-SNP attestation report parser.

   The report is a fixed-layout, little-endian structure issued and signed by
   the AMD Secure Processor. Every field offset is fixed by the firmware ABI
   (Table 21 and Table 23 @ https://www.amd.com/system/files/TechDocs/56860.pdf),
   so parsing is plain slicing at compile-time-known offsets.

   Two incompatible report versions exist. Firmware before ABI release 1.56
   emits version 2; firmware from 1.56 on emits version 3, which repurposes
   three reserved bytes at offset 0x188 for CPUID family/model/stepping and
   defines one extra platform info bit. Everything else is identical, including
   the signing convention: the firmware signs exactly bytes [0, 0x2A0) of the
   serialized report with its VCEK or VLEK.
*/

const (
	// ReportSize is the fixed size of a serialized attestation report,
	// including the trailing signature block.
	ReportSize = 1184

	// SignedDataSize is the size of the measurable prefix of a report, i.e.
	// the bytes the firmware hashes and signs. The signature itself occupies
	// [SignedDataSize, ReportSize).
	SignedDataSize = 0x2A0

	// SignatureAlgoECDSAP384SHA384 is the only signature algorithm currently
	// defined by the ABI: ECDSA P-384 over SHA-384.
	SignatureAlgoECDSAP384SHA384 = 1

	reportVersion2 = 2
	reportVersion3 = 3
)

// ErrReportTruncated is returned when a raw report is shorter than the fixed
// structure size.
var ErrReportTruncated = errors.New("attestation report is truncated")

// Signature is the ECDSA P-384 signature trailing the report. R and S are
// little-endian, zero-extended to 72 bytes each per the firmware ABI.
type Signature struct {
	R        [72]byte
	S        [72]byte
	Reserved [368]byte
}

// AttestationReportV2 is an attestation report as issued by firmware before
// ABI release 1.56.
type AttestationReportV2 struct {
	Version         uint32
	GuestSVN        uint32
	Policy          GuestPolicy
	FamilyID        [16]byte
	ImageID         [16]byte
	VMPL            uint32
	SignatureAlgo   uint32
	CurrentTCB      TCBVersion
	PlatformInfo    PlatformInfoV1
	KeyInfo         KeyInfo
	Reserved0       uint32
	ReportData      [64]byte
	Measurement     [48]byte
	HostData        [32]byte
	IDKeyDigest     [48]byte
	AuthorKeyDigest [48]byte
	ReportID        [32]byte
	ReportIDMA      [32]byte
	ReportedTCB     TCBVersion
	Reserved1       [24]byte
	ChipID          [64]byte
	CommittedTCB    TCBVersion
	CurrentBuild    uint8
	CurrentMinor    uint8
	CurrentMajor    uint8
	Reserved2       uint8
	CommittedBuild  uint8
	CommittedMinor  uint8
	CommittedMajor  uint8
	Reserved3       uint8
	LaunchTCB       TCBVersion
	Reserved4       [168]byte
	Signature       Signature
}

// AttestationReportV3 is an attestation report as issued by firmware from ABI
// release 1.56 on. It differs from V2 only in the CPUID identification bytes
// (carved out of a formerly reserved span) and the platform info revision.
type AttestationReportV3 struct {
	Version         uint32
	GuestSVN        uint32
	Policy          GuestPolicy
	FamilyID        [16]byte
	ImageID         [16]byte
	VMPL            uint32
	SignatureAlgo   uint32
	CurrentTCB      TCBVersion
	PlatformInfo    PlatformInfoV2
	KeyInfo         KeyInfo
	Reserved0       uint32
	ReportData      [64]byte
	Measurement     [48]byte
	HostData        [32]byte
	IDKeyDigest     [48]byte
	AuthorKeyDigest [48]byte
	ReportID        [32]byte
	ReportIDMA      [32]byte
	ReportedTCB     TCBVersion
	CPUIDFamily     uint8
	CPUIDModel      uint8
	CPUIDStepping   uint8
	Reserved1       [21]byte
	ChipID          [64]byte
	CommittedTCB    TCBVersion
	CurrentBuild    uint8
	CurrentMinor    uint8
	CurrentMajor    uint8
	Reserved2       uint8
	CommittedBuild  uint8
	CommittedMinor  uint8
	CommittedMajor  uint8
	Reserved3       uint8
	LaunchTCB       TCBVersion
	Reserved4       [168]byte
	Signature       Signature
}

// AttestationReport provides one accessor surface over both report versions.
// It is created by ParseReport or one of the NewV*Report constructors and is
// immutable afterwards.
type AttestationReport struct {
	v2 *AttestationReportV2
	v3 *AttestationReportV3
}

// NewV2Report wraps a version 2 report in the version-unifying facade.
func NewV2Report(report AttestationReportV2) AttestationReport {
	return AttestationReport{v2: &report}
}

// NewV3Report wraps a version 3 report in the version-unifying facade.
func NewV3Report(report AttestationReportV3) AttestationReport {
	return AttestationReport{v3: &report}
}

// ParseReport parses a raw SEV-SNP attestation report. The first four bytes
// select the report version; bytes past the fixed structure size are ignored.
// The input is copied out, the raw slice is not retained.
func ParseReport(rawReport []byte) (AttestationReport, error) {
	if len(rawReport) < 4 {
		return AttestationReport{}, fmt.Errorf("%w: %d bytes cannot hold a version discriminant", ErrReportTruncated, len(rawReport))
	}

	version := binary.LittleEndian.Uint32(rawReport[0:4])
	switch version {
	case reportVersion2, reportVersion3:
	default:
		return AttestationReport{}, &UnsupportedVersionError{Version: version}
	}

	if len(rawReport) < ReportSize {
		return AttestationReport{}, fmt.Errorf("%w: structure requires %d bytes, got %d", ErrReportTruncated, ReportSize, len(rawReport))
	}

	if version == reportVersion2 {
		report := parseReportV2(rawReport)
		return AttestationReport{v2: &report}, nil
	}
	report := parseReportV3(rawReport)
	return AttestationReport{v3: &report}, nil
}

func parseReportV2(raw []byte) AttestationReportV2 {
	return AttestationReportV2{
		Version:         binary.LittleEndian.Uint32(raw[0:4]),
		GuestSVN:        binary.LittleEndian.Uint32(raw[4:8]),
		Policy:          GuestPolicy(binary.LittleEndian.Uint64(raw[8:16])),
		FamilyID:        [16]byte(raw[16:32]),
		ImageID:         [16]byte(raw[32:48]),
		VMPL:            binary.LittleEndian.Uint32(raw[48:52]),
		SignatureAlgo:   binary.LittleEndian.Uint32(raw[52:56]),
		CurrentTCB:      ParseTCBVersion(binary.LittleEndian.Uint64(raw[56:64])),
		PlatformInfo:    PlatformInfoV1(binary.LittleEndian.Uint64(raw[64:72])),
		KeyInfo:         KeyInfo(binary.LittleEndian.Uint32(raw[72:76])),
		Reserved0:       binary.LittleEndian.Uint32(raw[76:80]),
		ReportData:      [64]byte(raw[80:144]),
		Measurement:     [48]byte(raw[144:192]),
		HostData:        [32]byte(raw[192:224]),
		IDKeyDigest:     [48]byte(raw[224:272]),
		AuthorKeyDigest: [48]byte(raw[272:320]),
		ReportID:        [32]byte(raw[320:352]),
		ReportIDMA:      [32]byte(raw[352:384]),
		ReportedTCB:     ParseTCBVersion(binary.LittleEndian.Uint64(raw[384:392])),
		Reserved1:       [24]byte(raw[392:416]),
		ChipID:          [64]byte(raw[416:480]),
		CommittedTCB:    ParseTCBVersion(binary.LittleEndian.Uint64(raw[480:488])),
		CurrentBuild:    raw[488],
		CurrentMinor:    raw[489],
		CurrentMajor:    raw[490],
		Reserved2:       raw[491],
		CommittedBuild:  raw[492],
		CommittedMinor:  raw[493],
		CommittedMajor:  raw[494],
		Reserved3:       raw[495],
		LaunchTCB:       ParseTCBVersion(binary.LittleEndian.Uint64(raw[496:504])),
		Reserved4:       [168]byte(raw[504:672]),
		Signature:       parseSignature(raw[672:1184]),
	}
}

func parseReportV3(raw []byte) AttestationReportV3 {
	return AttestationReportV3{
		Version:         binary.LittleEndian.Uint32(raw[0:4]),
		GuestSVN:        binary.LittleEndian.Uint32(raw[4:8]),
		Policy:          GuestPolicy(binary.LittleEndian.Uint64(raw[8:16])),
		FamilyID:        [16]byte(raw[16:32]),
		ImageID:         [16]byte(raw[32:48]),
		VMPL:            binary.LittleEndian.Uint32(raw[48:52]),
		SignatureAlgo:   binary.LittleEndian.Uint32(raw[52:56]),
		CurrentTCB:      ParseTCBVersion(binary.LittleEndian.Uint64(raw[56:64])),
		PlatformInfo:    PlatformInfoV2(binary.LittleEndian.Uint64(raw[64:72])),
		KeyInfo:         KeyInfo(binary.LittleEndian.Uint32(raw[72:76])),
		Reserved0:       binary.LittleEndian.Uint32(raw[76:80]),
		ReportData:      [64]byte(raw[80:144]),
		Measurement:     [48]byte(raw[144:192]),
		HostData:        [32]byte(raw[192:224]),
		IDKeyDigest:     [48]byte(raw[224:272]),
		AuthorKeyDigest: [48]byte(raw[272:320]),
		ReportID:        [32]byte(raw[320:352]),
		ReportIDMA:      [32]byte(raw[352:384]),
		ReportedTCB:     ParseTCBVersion(binary.LittleEndian.Uint64(raw[384:392])),
		CPUIDFamily:     raw[392],
		CPUIDModel:      raw[393],
		CPUIDStepping:   raw[394],
		Reserved1:       [21]byte(raw[395:416]),
		ChipID:          [64]byte(raw[416:480]),
		CommittedTCB:    ParseTCBVersion(binary.LittleEndian.Uint64(raw[480:488])),
		CurrentBuild:    raw[488],
		CurrentMinor:    raw[489],
		CurrentMajor:    raw[490],
		Reserved2:       raw[491],
		CommittedBuild:  raw[492],
		CommittedMinor:  raw[493],
		CommittedMajor:  raw[494],
		Reserved3:       raw[495],
		LaunchTCB:       ParseTCBVersion(binary.LittleEndian.Uint64(raw[496:504])),
		Reserved4:       [168]byte(raw[504:672]),
		Signature:       parseSignature(raw[672:1184]),
	}
}

// parseSignature parses the 512-byte signature block trailing a report.
func parseSignature(raw []byte) Signature {
	return Signature{
		R:        [72]byte(raw[0:72]),
		S:        [72]byte(raw[72:144]),
		Reserved: [368]byte(raw[144:512]),
	}
}

// Version returns the report version discriminant.
func (r AttestationReport) Version() uint32 {
	if r.v2 != nil {
		return r.v2.Version
	}
	return r.v3.Version
}

// GuestSVN returns the guest security version number.
func (r AttestationReport) GuestSVN() uint32 {
	if r.v2 != nil {
		return r.v2.GuestSVN
	}
	return r.v3.GuestSVN
}

// Policy returns the guest policy provided at launch.
func (r AttestationReport) Policy() GuestPolicy {
	if r.v2 != nil {
		return r.v2.Policy
	}
	return r.v3.Policy
}

// FamilyID returns the family ID provided at launch.
func (r AttestationReport) FamilyID() [16]byte {
	if r.v2 != nil {
		return r.v2.FamilyID
	}
	return r.v3.FamilyID
}

// ImageID returns the image ID provided at launch.
func (r AttestationReport) ImageID() [16]byte {
	if r.v2 != nil {
		return r.v2.ImageID
	}
	return r.v3.ImageID
}

// VMPL returns the VMPL the report was requested at.
func (r AttestationReport) VMPL() uint32 {
	if r.v2 != nil {
		return r.v2.VMPL
	}
	return r.v3.VMPL
}

// SignatureAlgo returns the algorithm used to sign the report.
func (r AttestationReport) SignatureAlgo() uint32 {
	if r.v2 != nil {
		return r.v2.SignatureAlgo
	}
	return r.v3.SignatureAlgo
}

// CurrentTCB returns the current TCB version of the platform.
func (r AttestationReport) CurrentTCB() TCBVersion {
	if r.v2 != nil {
		return r.v2.CurrentTCB
	}
	return r.v3.CurrentTCB
}

// PlatformInfo returns the platform info bits. The returned union retains the
// revision so that V2-only bits stay reachable where present.
func (r AttestationReport) PlatformInfo() PlatformInfo {
	if r.v2 != nil {
		return PlatformInfo{v1: &r.v2.PlatformInfo}
	}
	return PlatformInfo{v2: &r.v3.PlatformInfo}
}

// KeyInfo returns information about the keys used to sign the report.
func (r AttestationReport) KeyInfo() KeyInfo {
	if r.v2 != nil {
		return r.v2.KeyInfo
	}
	return r.v3.KeyInfo
}

// ReportData returns the 64 bytes of guest-provided data.
func (r AttestationReport) ReportData() [64]byte {
	if r.v2 != nil {
		return r.v2.ReportData
	}
	return r.v3.ReportData
}

// Measurement returns the launch measurement of the guest.
func (r AttestationReport) Measurement() [48]byte {
	if r.v2 != nil {
		return r.v2.Measurement
	}
	return r.v3.Measurement
}

// HostData returns the data provided by the hypervisor at launch.
func (r AttestationReport) HostData() [32]byte {
	if r.v2 != nil {
		return r.v2.HostData
	}
	return r.v3.HostData
}

// IDKeyDigest returns the SHA-384 digest of the ID public key that signed the ID block.
func (r AttestationReport) IDKeyDigest() [48]byte {
	if r.v2 != nil {
		return r.v2.IDKeyDigest
	}
	return r.v3.IDKeyDigest
}

// AuthorKeyDigest returns the SHA-384 digest of the author public key that certified the ID key.
func (r AttestationReport) AuthorKeyDigest() [48]byte {
	if r.v2 != nil {
		return r.v2.AuthorKeyDigest
	}
	return r.v3.AuthorKeyDigest
}

// ReportID returns the report ID of the guest.
func (r AttestationReport) ReportID() [32]byte {
	if r.v2 != nil {
		return r.v2.ReportID
	}
	return r.v3.ReportID
}

// ReportIDMA returns the report ID of the guest's migration agent, if any.
func (r AttestationReport) ReportIDMA() [32]byte {
	if r.v2 != nil {
		return r.v2.ReportIDMA
	}
	return r.v3.ReportIDMA
}

// ReportedTCB returns the TCB version used to derive the VCEK that signed the report.
func (r AttestationReport) ReportedTCB() TCBVersion {
	if r.v2 != nil {
		return r.v2.ReportedTCB
	}
	return r.v3.ReportedTCB
}

// CPUID returns the CPUID family, model and stepping of the platform. The
// fields only exist in V3 reports; requesting them on a V2 report returns an
// UnsupportedFieldError.
func (r AttestationReport) CPUID() (family, model, stepping uint8, err error) {
	if r.v2 != nil {
		return 0, 0, 0, &UnsupportedFieldError{Field: "cpuid information"}
	}
	return r.v3.CPUIDFamily, r.v3.CPUIDModel, r.v3.CPUIDStepping, nil
}

// ChipID returns the identifier unique to the chip, or zeros if MaskChipKey is set.
func (r AttestationReport) ChipID() [64]byte {
	if r.v2 != nil {
		return r.v2.ChipID
	}
	return r.v3.ChipID
}

// CommittedTCB returns the committed TCB version of the platform.
func (r AttestationReport) CommittedTCB() TCBVersion {
	if r.v2 != nil {
		return r.v2.CommittedTCB
	}
	return r.v3.CommittedTCB
}

// CurrentVersion returns the current firmware version as (major, minor, build).
func (r AttestationReport) CurrentVersion() (major, minor, build uint8) {
	if r.v2 != nil {
		return r.v2.CurrentMajor, r.v2.CurrentMinor, r.v2.CurrentBuild
	}
	return r.v3.CurrentMajor, r.v3.CurrentMinor, r.v3.CurrentBuild
}

// CommittedVersion returns the committed firmware version as (major, minor, build).
func (r AttestationReport) CommittedVersion() (major, minor, build uint8) {
	if r.v2 != nil {
		return r.v2.CommittedMajor, r.v2.CommittedMinor, r.v2.CommittedBuild
	}
	return r.v3.CommittedMajor, r.v3.CommittedMinor, r.v3.CommittedBuild
}

// LaunchTCB returns the TCB version at the time the guest was launched or imported.
func (r AttestationReport) LaunchTCB() TCBVersion {
	if r.v2 != nil {
		return r.v2.LaunchTCB
	}
	return r.v3.LaunchTCB
}

// Signature returns the ECDSA signature trailing the report.
func (r AttestationReport) Signature() Signature {
	if r.v2 != nil {
		return r.v2.Signature
	}
	return r.v3.Signature
}
