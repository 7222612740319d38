package types

import (
	"encoding/binary"
	"errors"
)

// Marshal serializes a V2 attestation report into its binary wire form.
// The guest policy is canonicalized on the way out: its reserved-must-be-one
// bit is forced to 1, as the firmware does.
func (r *AttestationReportV2) Marshal() [ReportSize]byte {
	var result [ReportSize]byte

	binary.LittleEndian.PutUint32(result[0:4], r.Version)
	binary.LittleEndian.PutUint32(result[4:8], r.GuestSVN)
	binary.LittleEndian.PutUint64(result[8:16], r.Policy.Raw())
	copy(result[16:32], r.FamilyID[:])
	copy(result[32:48], r.ImageID[:])
	binary.LittleEndian.PutUint32(result[48:52], r.VMPL)
	binary.LittleEndian.PutUint32(result[52:56], r.SignatureAlgo)
	binary.LittleEndian.PutUint64(result[56:64], r.CurrentTCB.Raw())
	binary.LittleEndian.PutUint64(result[64:72], uint64(r.PlatformInfo))
	binary.LittleEndian.PutUint32(result[72:76], uint32(r.KeyInfo))
	binary.LittleEndian.PutUint32(result[76:80], r.Reserved0)
	copy(result[80:144], r.ReportData[:])
	copy(result[144:192], r.Measurement[:])
	copy(result[192:224], r.HostData[:])
	copy(result[224:272], r.IDKeyDigest[:])
	copy(result[272:320], r.AuthorKeyDigest[:])
	copy(result[320:352], r.ReportID[:])
	copy(result[352:384], r.ReportIDMA[:])
	binary.LittleEndian.PutUint64(result[384:392], r.ReportedTCB.Raw())
	copy(result[392:416], r.Reserved1[:])
	copy(result[416:480], r.ChipID[:])
	binary.LittleEndian.PutUint64(result[480:488], r.CommittedTCB.Raw())
	result[488] = r.CurrentBuild
	result[489] = r.CurrentMinor
	result[490] = r.CurrentMajor
	result[491] = r.Reserved2
	result[492] = r.CommittedBuild
	result[493] = r.CommittedMinor
	result[494] = r.CommittedMajor
	result[495] = r.Reserved3
	binary.LittleEndian.PutUint64(result[496:504], r.LaunchTCB.Raw())
	copy(result[504:672], r.Reserved4[:])
	signature := r.Signature.Marshal()
	copy(result[672:1184], signature[:])

	return result
}

// Marshal serializes a V3 attestation report into its binary wire form.
// The guest policy is canonicalized on the way out: its reserved-must-be-one
// bit is forced to 1, as the firmware does.
func (r *AttestationReportV3) Marshal() [ReportSize]byte {
	var result [ReportSize]byte

	binary.LittleEndian.PutUint32(result[0:4], r.Version)
	binary.LittleEndian.PutUint32(result[4:8], r.GuestSVN)
	binary.LittleEndian.PutUint64(result[8:16], r.Policy.Raw())
	copy(result[16:32], r.FamilyID[:])
	copy(result[32:48], r.ImageID[:])
	binary.LittleEndian.PutUint32(result[48:52], r.VMPL)
	binary.LittleEndian.PutUint32(result[52:56], r.SignatureAlgo)
	binary.LittleEndian.PutUint64(result[56:64], r.CurrentTCB.Raw())
	binary.LittleEndian.PutUint64(result[64:72], uint64(r.PlatformInfo))
	binary.LittleEndian.PutUint32(result[72:76], uint32(r.KeyInfo))
	binary.LittleEndian.PutUint32(result[76:80], r.Reserved0)
	copy(result[80:144], r.ReportData[:])
	copy(result[144:192], r.Measurement[:])
	copy(result[192:224], r.HostData[:])
	copy(result[224:272], r.IDKeyDigest[:])
	copy(result[272:320], r.AuthorKeyDigest[:])
	copy(result[320:352], r.ReportID[:])
	copy(result[352:384], r.ReportIDMA[:])
	binary.LittleEndian.PutUint64(result[384:392], r.ReportedTCB.Raw())
	result[392] = r.CPUIDFamily
	result[393] = r.CPUIDModel
	result[394] = r.CPUIDStepping
	copy(result[395:416], r.Reserved1[:])
	copy(result[416:480], r.ChipID[:])
	binary.LittleEndian.PutUint64(result[480:488], r.CommittedTCB.Raw())
	result[488] = r.CurrentBuild
	result[489] = r.CurrentMinor
	result[490] = r.CurrentMajor
	result[491] = r.Reserved2
	result[492] = r.CommittedBuild
	result[493] = r.CommittedMinor
	result[494] = r.CommittedMajor
	result[495] = r.Reserved3
	binary.LittleEndian.PutUint64(result[496:504], r.LaunchTCB.Raw())
	copy(result[504:672], r.Reserved4[:])
	signature := r.Signature.Marshal()
	copy(result[672:1184], signature[:])

	return result
}

// Marshal serializes the signature block into its binary wire form.
func (s *Signature) Marshal() [512]byte {
	var result [512]byte
	copy(result[0:72], s.R[:])
	copy(result[72:144], s.S[:])
	copy(result[144:512], s.Reserved[:])
	return result
}

// Marshal serializes the wrapped report, whichever version it is.
func (r AttestationReport) Marshal() ([ReportSize]byte, error) {
	switch {
	case r.v2 != nil:
		return r.v2.Marshal(), nil
	case r.v3 != nil:
		return r.v3.Marshal(), nil
	default:
		return [ReportSize]byte{}, errors.New("attestation report holds no version variant")
	}
}

// MeasurableBytes returns the prefix of the serialized report the firmware
// actually signed: everything up to, but excluding, the signature block.
func (r AttestationReport) MeasurableBytes() ([SignedDataSize]byte, error) {
	raw, err := r.Marshal()
	if err != nil {
		return [SignedDataSize]byte{}, err
	}
	return [SignedDataSize]byte(raw[:SignedDataSize]), nil
}
