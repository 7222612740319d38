package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Human readable renderings of the report and its packed fields, mainly for
// CLI output and debugging.

// String renders the TCB version components.
func (t TCBVersion) String() string {
	return fmt.Sprintf(`TCB Version:
  Microcode:   %d
  SNP:         %d
  TEE:         %d
  Boot Loader: %d`,
		t.Microcode, t.SNP, t.TEE, t.BootLoader)
}

// String renders the guest policy bits.
func (p GuestPolicy) String() string {
	return fmt.Sprintf(`Guest Policy (0x%x):
  ABI Major:          %d
  ABI Minor:          %d
  SMT Allowed:        %t
  Migrate MA Allowed: %t
  Debug Allowed:      %t
  Single Socket:      %t
  CXL Allowed:        %t
  AES 256 XTS:        %t
  RAPL Disabled:      %t
  Ciphertext Hiding:  %t`,
		p.Raw(), p.ABIMajor(), p.ABIMinor(), p.SMTAllowed(), p.MigrateMAAllowed(),
		p.DebugAllowed(), p.SingleSocketRequired(), p.CXLAllowed(), p.MemAES256XTS(),
		p.RAPLDisabled(), p.CiphertextHiding())
}

// String renders the V1 platform info bits.
func (p PlatformInfoV1) String() string {
	return fmt.Sprintf(`Platform Info (0x%x):
  SMT Enabled:               %t
  TSME Enabled:              %t
  ECC Enabled:               %t
  RAPL Disabled:             %t
  Ciphertext Hiding Enabled: %t`,
		uint64(p), p.SMTEnabled(), p.TSMEEnabled(), p.ECCEnabled(),
		p.RAPLDisabled(), p.CiphertextHidingEnabled())
}

// String renders the V2 platform info bits.
func (p PlatformInfoV2) String() string {
	return fmt.Sprintf(`Platform Info (0x%x):
  SMT Enabled:               %t
  TSME Enabled:              %t
  ECC Enabled:               %t
  RAPL Disabled:             %t
  Ciphertext Hiding Enabled: %t
  Alias Check Complete:      %t`,
		uint64(p), p.SMTEnabled(), p.TSMEEnabled(), p.ECCEnabled(),
		p.RAPLDisabled(), p.CiphertextHidingEnabled(), p.AliasCheckComplete())
}

// String renders whichever platform info revision is wrapped.
func (p PlatformInfo) String() string {
	if p.v1 != nil {
		return p.v1.String()
	}
	return p.v2.String()
}

// String renders the key info bits.
func (k KeyInfo) String() string {
	return fmt.Sprintf(`Key Information:
  Author Key Enabled: %t
  Mask Chip Key:      %t
  Signing Key:        %s`,
		k.AuthorKeyEn(), k.MaskChipKey(), k.SigningKey())
}

// String renders the signature components as hex.
func (s Signature) String() string {
	return fmt.Sprintf(`Signature:
  R: %s
  S: %s`,
		hex.EncodeToString(s.R[:]), hex.EncodeToString(s.S[:]))
}

// String renders the full report, whichever version it is.
func (r AttestationReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Attestation Report (%d bytes):\n", ReportSize)
	fmt.Fprintf(&b, "Version:                   %d\n", r.Version())
	fmt.Fprintf(&b, "Guest SVN:                 %d\n", r.GuestSVN())
	fmt.Fprintf(&b, "%s\n", indent(r.Policy().String()))
	familyID := r.FamilyID()
	fmt.Fprintf(&b, "Family ID:                 %s\n", hex.EncodeToString(familyID[:]))
	imageID := r.ImageID()
	fmt.Fprintf(&b, "Image ID:                  %s\n", hex.EncodeToString(imageID[:]))
	fmt.Fprintf(&b, "VMPL:                      %d\n", r.VMPL())
	fmt.Fprintf(&b, "Signature Algorithm:       %d\n", r.SignatureAlgo())
	fmt.Fprintf(&b, "Current %s\n", indent(r.CurrentTCB().String()))
	fmt.Fprintf(&b, "%s\n", indent(r.PlatformInfo().String()))
	fmt.Fprintf(&b, "%s\n", indent(r.KeyInfo().String()))
	reportData := r.ReportData()
	fmt.Fprintf(&b, "Report Data:               %s\n", hex.EncodeToString(reportData[:]))
	measurement := r.Measurement()
	fmt.Fprintf(&b, "Measurement:               %s\n", hex.EncodeToString(measurement[:]))
	hostData := r.HostData()
	fmt.Fprintf(&b, "Host Data:                 %s\n", hex.EncodeToString(hostData[:]))
	idKeyDigest := r.IDKeyDigest()
	fmt.Fprintf(&b, "ID Key Digest:             %s\n", hex.EncodeToString(idKeyDigest[:]))
	authorKeyDigest := r.AuthorKeyDigest()
	fmt.Fprintf(&b, "Author Key Digest:         %s\n", hex.EncodeToString(authorKeyDigest[:]))
	reportID := r.ReportID()
	fmt.Fprintf(&b, "Report ID:                 %s\n", hex.EncodeToString(reportID[:]))
	reportIDMA := r.ReportIDMA()
	fmt.Fprintf(&b, "Report ID Migration Agent: %s\n", hex.EncodeToString(reportIDMA[:]))
	fmt.Fprintf(&b, "Reported %s\n", indent(r.ReportedTCB().String()))
	if family, model, stepping, err := r.CPUID(); err == nil {
		fmt.Fprintf(&b, "CPUID Family:              %d\n", family)
		fmt.Fprintf(&b, "CPUID Model:               %d\n", model)
		fmt.Fprintf(&b, "CPUID Stepping:            %d\n", stepping)
	}
	chipID := r.ChipID()
	fmt.Fprintf(&b, "Chip ID:                   %s\n", hex.EncodeToString(chipID[:]))
	fmt.Fprintf(&b, "Committed %s\n", indent(r.CommittedTCB().String()))
	major, minor, build := r.CurrentVersion()
	fmt.Fprintf(&b, "Current Version:           %d.%d.%d\n", major, minor, build)
	major, minor, build = r.CommittedVersion()
	fmt.Fprintf(&b, "Committed Version:         %d.%d.%d\n", major, minor, build)
	fmt.Fprintf(&b, "Launch %s\n", indent(r.LaunchTCB().String()))
	fmt.Fprintf(&b, "%s", indent(r.Signature().String()))

	return b.String()
}

// indent shifts the continuation lines of a multi-line rendering so nested
// blocks line up under their heading.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}
