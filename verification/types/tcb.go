package types

// TCBVersion identifies the firmware and microcode security patch levels of
// the platform. It occupies a single little-endian u64 in the report, with one
// SVN per byte:
//
//	Byte(s)  Name
//	0        BOOT_LOADER
//	1        TEE
//	5:2      reserved
//	6        SNP
//	7        MICROCODE
type TCBVersion struct {
	BootLoader uint8
	TEE        uint8
	SNP        uint8
	Microcode  uint8
}

// ParseTCBVersion decodes a TCB version from its raw u64 form.
func ParseTCBVersion(raw uint64) TCBVersion {
	return TCBVersion{
		BootLoader: uint8(raw),
		TEE:        uint8(raw >> 8),
		SNP:        uint8(raw >> 48),
		Microcode:  uint8(raw >> 56),
	}
}

// Raw returns the u64 wire form of the TCB version. Reserved bytes are zero.
func (t TCBVersion) Raw() uint64 {
	return uint64(t.BootLoader) |
		uint64(t.TEE)<<8 |
		uint64(t.SNP)<<48 |
		uint64(t.Microcode)<<56
}
