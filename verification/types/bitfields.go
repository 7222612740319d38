package types

/*
   SEV-SNP packed bit-fields.

   The firmware encodes guest policy, platform info and key info as plain
   little-endian integers whose individual bit ranges carry independent
   semantics. Each field below is a named integer type plus shift-and-mask
   accessors for its declared (lo, hi) ranges.
   Based on Table 9, Table 23 and Table 24 of the SNP ABI specification:
   https://www.amd.com/system/files/TechDocs/56860.pdf
*/

// bits64 extracts the inclusive bit range [lo, hi] of v as an unsigned value.
func bits64(v uint64, lo, hi uint) uint64 {
	return (v >> lo) & (1<<(hi-lo+1) - 1)
}

// setBits64 stores x into the inclusive bit range [lo, hi] of v, leaving all
// other bits untouched. Bits of x above the range width are discarded.
func setBits64(v uint64, lo, hi uint, x uint64) uint64 {
	mask := uint64(1<<(hi-lo+1)-1) << lo
	return v&^mask | x<<lo&mask
}

func bit64(v uint64, pos uint) bool {
	return v>>pos&1 == 1
}

func setBit64(v uint64, pos uint, b bool) uint64 {
	if b {
		return v | 1<<pos
	}
	return v &^ (1 << pos)
}

// policyReservedMustBeOne is bit 17 of the guest policy. The ABI requires it
// to be 1 on the wire, independent of the stored value.
const policyReservedMustBeOne = uint64(1) << 17

// GuestPolicy is the policy the guest owner provided at launch, restricting
// what actions the hypervisor may take on the guest.
//
//	Bit(s)  Name
//	7:0     ABI_MINOR
//	15:8    ABI_MAJOR
//	16      SMT
//	17      reserved, must be one
//	18      MIGRATE_MA
//	19      DEBUG
//	20      SINGLE_SOCKET
//	21      CXL_ALLOW
//	22      MEM_AES_256_XTS
//	23      RAPL_DIS
//	24      CIPHERTEXT_HIDING
//	63:25   reserved, must be zero
type GuestPolicy uint64

// Raw returns the wire representation of the policy. Bit 17 is reserved and
// always reads back as 1, regardless of the stored value.
func (p GuestPolicy) Raw() uint64 {
	return uint64(p) | policyReservedMustBeOne
}

// ABIMinor returns the minimum ABI minor version required for this guest to run.
func (p GuestPolicy) ABIMinor() uint8 { return uint8(bits64(uint64(p), 0, 7)) }

// ABIMajor returns the minimum ABI major version required for this guest to run.
func (p GuestPolicy) ABIMajor() uint8 { return uint8(bits64(uint64(p), 8, 15)) }

// SMTAllowed reports whether host SMT usage is allowed.
func (p GuestPolicy) SMTAllowed() bool { return bit64(uint64(p), 16) }

// MigrateMAAllowed reports whether association with a migration agent is allowed.
func (p GuestPolicy) MigrateMAAllowed() bool { return bit64(uint64(p), 18) }

// DebugAllowed reports whether debugging of the guest is allowed.
func (p GuestPolicy) DebugAllowed() bool { return bit64(uint64(p), 19) }

// SingleSocketRequired reports whether the guest may only be activated on one socket.
func (p GuestPolicy) SingleSocketRequired() bool { return bit64(uint64(p), 20) }

// CXLAllowed reports whether CXL may be populated with devices or memory.
func (p GuestPolicy) CXLAllowed() bool { return bit64(uint64(p), 21) }

// MemAES256XTS reports whether AES 256 XTS is required for memory encryption.
func (p GuestPolicy) MemAES256XTS() bool { return bit64(uint64(p), 22) }

// RAPLDisabled reports whether Running Average Power Limit must be disabled.
func (p GuestPolicy) RAPLDisabled() bool { return bit64(uint64(p), 23) }

// CiphertextHiding reports whether ciphertext hiding must be enabled.
func (p GuestPolicy) CiphertextHiding() bool { return bit64(uint64(p), 24) }

// SetABIMinor sets the minimum ABI minor version.
func (p *GuestPolicy) SetABIMinor(v uint8) { *p = GuestPolicy(setBits64(uint64(*p), 0, 7, uint64(v))) }

// SetABIMajor sets the minimum ABI major version.
func (p *GuestPolicy) SetABIMajor(v uint8) { *p = GuestPolicy(setBits64(uint64(*p), 8, 15, uint64(v))) }

// SetSMTAllowed sets whether host SMT usage is allowed.
func (p *GuestPolicy) SetSMTAllowed(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 16, b)) }

// SetMigrateMAAllowed sets whether association with a migration agent is allowed.
func (p *GuestPolicy) SetMigrateMAAllowed(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 18, b)) }

// SetDebugAllowed sets whether debugging of the guest is allowed.
func (p *GuestPolicy) SetDebugAllowed(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 19, b)) }

// SetSingleSocketRequired sets whether the guest may only be activated on one socket.
func (p *GuestPolicy) SetSingleSocketRequired(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 20, b)) }

// SetCXLAllowed sets whether CXL may be populated with devices or memory.
func (p *GuestPolicy) SetCXLAllowed(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 21, b)) }

// SetMemAES256XTS sets whether AES 256 XTS is required for memory encryption.
func (p *GuestPolicy) SetMemAES256XTS(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 22, b)) }

// SetRAPLDisabled sets whether RAPL must be disabled.
func (p *GuestPolicy) SetRAPLDisabled(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 23, b)) }

// SetCiphertextHiding sets whether ciphertext hiding must be enabled.
func (p *GuestPolicy) SetCiphertextHiding(b bool) { *p = GuestPolicy(setBit64(uint64(*p), 24, b)) }

// PlatformInfoV1 describes the platform a V2 report was generated on.
//
//	Bit(s)  Name
//	0       SMT_EN
//	1       TSME_EN
//	2       ECC_EN
//	3       RAPL_DIS
//	4       CIPHERTEXT_HIDING_EN
//	63:5    reserved
type PlatformInfoV1 uint64

// SMTEnabled reports whether SMT is enabled on the platform.
func (p PlatformInfoV1) SMTEnabled() bool { return bit64(uint64(p), 0) }

// TSMEEnabled reports whether transparent SME is enabled on the platform.
func (p PlatformInfoV1) TSMEEnabled() bool { return bit64(uint64(p), 1) }

// ECCEnabled reports whether the platform is currently using ECC memory.
func (p PlatformInfoV1) ECCEnabled() bool { return bit64(uint64(p), 2) }

// RAPLDisabled reports whether the RAPL feature is disabled.
func (p PlatformInfoV1) RAPLDisabled() bool { return bit64(uint64(p), 3) }

// CiphertextHidingEnabled reports whether ciphertext hiding is enabled.
func (p PlatformInfoV1) CiphertextHidingEnabled() bool { return bit64(uint64(p), 4) }

// PlatformInfoV2 describes the platform a V3 report was generated on.
// It extends PlatformInfoV1 with the ALIAS_CHECK_COMPLETE bit:
//
//	Bit(s)  Name
//	5       ALIAS_CHECK_COMPLETE
//	63:6    reserved
type PlatformInfoV2 uint64

// SMTEnabled reports whether SMT is enabled on the platform.
func (p PlatformInfoV2) SMTEnabled() bool { return bit64(uint64(p), 0) }

// TSMEEnabled reports whether transparent SME is enabled on the platform.
func (p PlatformInfoV2) TSMEEnabled() bool { return bit64(uint64(p), 1) }

// ECCEnabled reports whether the platform is currently using ECC memory.
func (p PlatformInfoV2) ECCEnabled() bool { return bit64(uint64(p), 2) }

// RAPLDisabled reports whether the RAPL feature is disabled.
func (p PlatformInfoV2) RAPLDisabled() bool { return bit64(uint64(p), 3) }

// CiphertextHidingEnabled reports whether ciphertext hiding is enabled.
func (p PlatformInfoV2) CiphertextHidingEnabled() bool { return bit64(uint64(p), 4) }

// AliasCheckComplete reports whether alias detection has completed since the
// last system reset without finding aliasing addresses.
func (p PlatformInfoV2) AliasCheckComplete() bool { return bit64(uint64(p), 5) }

// PlatformInfo unifies the two platform info revisions. Exactly one of the
// variants is set. Callers that need the V2-only bits check AliasCheckComplete,
// which fails on V1 instead of silently reporting false.
type PlatformInfo struct {
	v1 *PlatformInfoV1
	v2 *PlatformInfoV2
}

// SMTEnabled reports whether SMT is enabled on the platform.
func (p PlatformInfo) SMTEnabled() bool {
	if p.v1 != nil {
		return p.v1.SMTEnabled()
	}
	return p.v2.SMTEnabled()
}

// TSMEEnabled reports whether transparent SME is enabled on the platform.
func (p PlatformInfo) TSMEEnabled() bool {
	if p.v1 != nil {
		return p.v1.TSMEEnabled()
	}
	return p.v2.TSMEEnabled()
}

// ECCEnabled reports whether the platform is currently using ECC memory.
func (p PlatformInfo) ECCEnabled() bool {
	if p.v1 != nil {
		return p.v1.ECCEnabled()
	}
	return p.v2.ECCEnabled()
}

// RAPLDisabled reports whether the RAPL feature is disabled.
func (p PlatformInfo) RAPLDisabled() bool {
	if p.v1 != nil {
		return p.v1.RAPLDisabled()
	}
	return p.v2.RAPLDisabled()
}

// CiphertextHidingEnabled reports whether ciphertext hiding is enabled.
func (p PlatformInfo) CiphertextHidingEnabled() bool {
	if p.v1 != nil {
		return p.v1.CiphertextHidingEnabled()
	}
	return p.v2.CiphertextHidingEnabled()
}

// AliasCheckComplete reports whether alias detection has completed. The field
// only exists in V2 platform info; requesting it on V1 returns an
// UnsupportedFieldError.
func (p PlatformInfo) AliasCheckComplete() (bool, error) {
	if p.v1 != nil {
		return false, &UnsupportedFieldError{Field: "alias check complete"}
	}
	return p.v2.AliasCheckComplete(), nil
}

// SigningKey encodes the key the firmware used to sign a report.
type SigningKey uint8

const (
	// SigningKeyVCEK indicates the report was signed with the Versioned Chip Endorsement Key.
	SigningKeyVCEK SigningKey = 0
	// SigningKeyVLEK indicates the report was signed with the Versioned Loaded Endorsement Key.
	SigningKeyVLEK SigningKey = 1
	// SigningKeyNone indicates the report was not signed.
	SigningKeyNone SigningKey = 7
)

// String returns the human readable name of the signing key.
func (k SigningKey) String() string {
	switch k {
	case SigningKeyVCEK:
		return "vcek"
	case SigningKeyVLEK:
		return "vlek"
	case SigningKeyNone:
		return "none"
	default:
		return "unknown"
	}
}

// KeyInfo describes the signing keys referenced by a report.
//
//	Bit(s)  Name
//	0       AUTHOR_KEY_EN
//	1       MASK_CHIP_KEY
//	4:2     SIGNING_KEY (0 = VCEK, 1 = VLEK, 7 = none, others reserved)
//	31:5    reserved, must be zero
type KeyInfo uint32

// AuthorKeyEn reports whether the digest of the author key is present in AUTHOR_KEY_DIGEST.
func (k KeyInfo) AuthorKeyEn() bool { return bit64(uint64(k), 0) }

// MaskChipKey returns the value of MaskChipKey. If set, the firmware wrote
// zeros into the signature field instead of signing the report.
func (k KeyInfo) MaskChipKey() bool { return bit64(uint64(k), 1) }

// SigningKey returns the key the firmware used to sign the report.
func (k KeyInfo) SigningKey() SigningKey { return SigningKey(bits64(uint64(k), 2, 4)) }

// GuestFieldSelect selects which guest fields the firmware mixes into a
// derived key.
//
//	Bit(s)  Name
//	0       GUEST_POLICY
//	1       IMAGE_ID
//	2       FAMILY_ID
//	3       MEASUREMENT
//	4       GUEST_SVN
//	5       TCB_VERSION
//	63:6    reserved, must be zero
type GuestFieldSelect uint64

// GuestPolicy reports whether the guest policy is mixed into the derived key.
func (g GuestFieldSelect) GuestPolicy() bool { return bit64(uint64(g), 0) }

// ImageID reports whether the image ID of the guest is mixed into the derived key.
func (g GuestFieldSelect) ImageID() bool { return bit64(uint64(g), 1) }

// FamilyID reports whether the family ID of the guest is mixed into the derived key.
func (g GuestFieldSelect) FamilyID() bool { return bit64(uint64(g), 2) }

// Measurement reports whether the launch measurement is mixed into the derived key.
func (g GuestFieldSelect) Measurement() bool { return bit64(uint64(g), 3) }

// GuestSVN reports whether the guest-provided SVN is mixed into the derived key.
func (g GuestFieldSelect) GuestSVN() bool { return bit64(uint64(g), 4) }

// TCBVersion reports whether the guest-provided TCB version is mixed into the derived key.
func (g GuestFieldSelect) TCBVersion() bool { return bit64(uint64(g), 5) }

// SetGuestPolicy sets guest policy inclusion in the derived key.
func (g *GuestFieldSelect) SetGuestPolicy(b bool) { *g = GuestFieldSelect(setBit64(uint64(*g), 0, b)) }

// SetImageID sets image ID inclusion in the derived key.
func (g *GuestFieldSelect) SetImageID(b bool) { *g = GuestFieldSelect(setBit64(uint64(*g), 1, b)) }

// SetFamilyID sets family ID inclusion in the derived key.
func (g *GuestFieldSelect) SetFamilyID(b bool) { *g = GuestFieldSelect(setBit64(uint64(*g), 2, b)) }

// SetMeasurement sets launch measurement inclusion in the derived key.
func (g *GuestFieldSelect) SetMeasurement(b bool) { *g = GuestFieldSelect(setBit64(uint64(*g), 3, b)) }

// SetGuestSVN sets guest SVN inclusion in the derived key.
func (g *GuestFieldSelect) SetGuestSVN(b bool) { *g = GuestFieldSelect(setBit64(uint64(*g), 4, b)) }

// SetTCBVersion sets TCB version inclusion in the derived key.
func (g *GuestFieldSelect) SetTCBVersion(b bool) { *g = GuestFieldSelect(setBit64(uint64(*g), 5, b)) }
