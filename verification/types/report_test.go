package types

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleReportV2 returns a version 2 report with recognizable values in every
// field a caller can observe.
func sampleReportV2() AttestationReportV2 {
	report := AttestationReportV2{
		Version:        2,
		GuestSVN:       7,
		Policy:         GuestPolicy(0x3_0000 | 0x01), // SMT allowed, ABI minor 1, reserved bit set
		VMPL:           1,
		SignatureAlgo:  SignatureAlgoECDSAP384SHA384,
		CurrentTCB:     TCBVersion{BootLoader: 3, TEE: 0, SNP: 8, Microcode: 115},
		PlatformInfo:   PlatformInfoV1(0b_0011), // SMT and TSME enabled
		KeyInfo:        KeyInfo(0),              // VCEK signed
		ReportedTCB:    TCBVersion{BootLoader: 3, TEE: 0, SNP: 8, Microcode: 115},
		CommittedTCB:   TCBVersion{BootLoader: 3, TEE: 0, SNP: 8, Microcode: 110},
		CurrentBuild:   4,
		CurrentMinor:   55,
		CurrentMajor:   1,
		CommittedBuild: 3,
		CommittedMinor: 52,
		CommittedMajor: 1,
		LaunchTCB:      TCBVersion{BootLoader: 3, TEE: 0, SNP: 8, Microcode: 110},
	}
	copy(report.FamilyID[:], "family")
	copy(report.ImageID[:], "image")
	copy(report.ReportData[:], "Hello from Edgeless Systems!")
	for i := range report.Measurement {
		report.Measurement[i] = byte(i)
	}
	for i := range report.ChipID {
		report.ChipID[i] = byte(0xA0 + i)
	}
	for i := range report.Signature.R {
		report.Signature.R[i] = byte(i)
		report.Signature.S[i] = byte(72 - i)
	}
	return report
}

// sampleReportV3 is sampleReportV2 with the version 3 additions set.
func sampleReportV3() AttestationReportV3 {
	v2 := sampleReportV2()
	report := AttestationReportV3{
		Version:         3,
		GuestSVN:        v2.GuestSVN,
		Policy:          v2.Policy,
		FamilyID:        v2.FamilyID,
		ImageID:         v2.ImageID,
		VMPL:            v2.VMPL,
		SignatureAlgo:   v2.SignatureAlgo,
		CurrentTCB:      v2.CurrentTCB,
		PlatformInfo:    PlatformInfoV2(0b10_0011), // SMT, TSME, alias check complete
		KeyInfo:         v2.KeyInfo,
		ReportData:      v2.ReportData,
		Measurement:     v2.Measurement,
		HostData:        v2.HostData,
		IDKeyDigest:     v2.IDKeyDigest,
		AuthorKeyDigest: v2.AuthorKeyDigest,
		ReportID:        v2.ReportID,
		ReportIDMA:      v2.ReportIDMA,
		ReportedTCB:     v2.ReportedTCB,
		CPUIDFamily:     25,
		CPUIDModel:      1,
		CPUIDStepping:   1,
		ChipID:          v2.ChipID,
		CommittedTCB:    v2.CommittedTCB,
		CurrentBuild:    v2.CurrentBuild,
		CurrentMinor:    v2.CurrentMinor,
		CurrentMajor:    v2.CurrentMajor,
		CommittedBuild:  v2.CommittedBuild,
		CommittedMinor:  v2.CommittedMinor,
		CommittedMajor:  v2.CommittedMajor,
		LaunchTCB:       v2.LaunchTCB,
		Signature:       v2.Signature,
	}
	return report
}

func TestParseReportV2(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	want := sampleReportV2()
	raw := want.Marshal()

	report, err := ParseReport(raw[:])
	require.NoError(err)

	assert.EqualValues(2, report.Version())
	assert.EqualValues(7, report.GuestSVN())
	assert.True(report.Policy().SMTAllowed())
	assert.EqualValues(1, report.Policy().ABIMinor())
	assert.EqualValues(1, report.VMPL())
	assert.EqualValues(SignatureAlgoECDSAP384SHA384, report.SignatureAlgo())
	assert.Equal(want.CurrentTCB, report.CurrentTCB())
	assert.Equal(want.ReportedTCB, report.ReportedTCB())
	assert.Equal(want.CommittedTCB, report.CommittedTCB())
	assert.Equal(want.LaunchTCB, report.LaunchTCB())
	assert.Equal(want.FamilyID, report.FamilyID())
	assert.Equal(want.ImageID, report.ImageID())
	assert.Equal(want.ReportData, report.ReportData())
	assert.Equal(want.Measurement, report.Measurement())
	assert.Equal(want.ChipID, report.ChipID())
	assert.Equal(SigningKeyVCEK, report.KeyInfo().SigningKey())
	assert.Equal(want.Signature, report.Signature())

	major, minor, build := report.CurrentVersion()
	assert.EqualValues(1, major)
	assert.EqualValues(55, minor)
	assert.EqualValues(4, build)
	major, minor, build = report.CommittedVersion()
	assert.EqualValues(1, major)
	assert.EqualValues(52, minor)
	assert.EqualValues(3, build)

	assert.True(report.PlatformInfo().SMTEnabled())
	assert.True(report.PlatformInfo().TSMEEnabled())
	assert.False(report.PlatformInfo().ECCEnabled())
}

func TestParseReportV3(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	want := sampleReportV3()
	raw := want.Marshal()

	report, err := ParseReport(raw[:])
	require.NoError(err)

	assert.EqualValues(3, report.Version())
	family, model, stepping, err := report.CPUID()
	require.NoError(err)
	assert.EqualValues(25, family)
	assert.EqualValues(1, model)
	assert.EqualValues(1, stepping)

	aliasCheck, err := report.PlatformInfo().AliasCheckComplete()
	require.NoError(err)
	assert.True(aliasCheck)
}

func TestParseReportErrors(t *testing.T) {
	testCases := map[string]struct {
		rawReport   []byte
		wantErr     error
		wantVersion uint32
	}{
		"empty input": {
			rawReport: nil,
			wantErr:   ErrReportTruncated,
		},
		"shorter than version field": {
			rawReport: []byte{2, 0, 0},
			wantErr:   ErrReportTruncated,
		},
		"valid version but truncated structure": {
			rawReport: func() []byte {
				report := sampleReportV2()
				raw := report.Marshal()
				return raw[:ReportSize-1]
			}(),
			wantErr: ErrReportTruncated,
		},
		"version 0": {
			rawReport:   make([]byte, ReportSize),
			wantVersion: 0,
		},
		"version 1": {
			rawReport: func() []byte {
				raw := make([]byte, ReportSize)
				raw[0] = 1
				return raw
			}(),
			wantVersion: 1,
		},
		"version 4": {
			rawReport: func() []byte {
				raw := make([]byte, ReportSize)
				raw[0] = 4
				return raw
			}(),
			wantVersion: 4,
		},
		"version from the far future": {
			rawReport: func() []byte {
				raw := make([]byte, ReportSize)
				binary.LittleEndian.PutUint32(raw[0:4], 0xFFFFFFFF)
				return raw
			}(),
			wantVersion: 0xFFFFFFFF,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := ParseReport(tc.rawReport)
			if tc.wantErr != nil {
				assert.ErrorIs(err, tc.wantErr)
				return
			}

			versionErr := &UnsupportedVersionError{}
			assert.ErrorAs(err, &versionErr)
			assert.Equal(tc.wantVersion, versionErr.Version)
		})
	}
}

func TestParseReportIgnoresTrailingBytes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	sample := sampleReportV2()
	raw := sample.Marshal()
	padded := append(raw[:], make([]byte, 100)...)

	report, err := ParseReport(padded)
	require.NoError(err)

	remarshaled, err := report.Marshal()
	require.NoError(err)
	assert.Equal(raw, remarshaled)
}

func TestReportRoundTrip(t *testing.T) {
	t.Run("v2", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		sample := sampleReportV2()
		raw := sample.Marshal()
		report, err := ParseReport(raw[:])
		require.NoError(err)

		remarshaled, err := report.Marshal()
		require.NoError(err)
		assert.Equal(raw, remarshaled)
	})

	t.Run("v3", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		sample := sampleReportV3()
		raw := sample.Marshal()
		report, err := ParseReport(raw[:])
		require.NoError(err)

		remarshaled, err := report.Marshal()
		require.NoError(err)
		assert.Equal(raw, remarshaled)
	})
}

func TestVersionSpecificFields(t *testing.T) {
	t.Run("cpuid is unavailable on v2", func(t *testing.T) {
		assert := assert.New(t)

		report := NewV2Report(sampleReportV2())
		_, _, _, err := report.CPUID()
		fieldErr := &UnsupportedFieldError{}
		assert.ErrorAs(err, &fieldErr)
	})

	t.Run("alias check is unavailable on v2", func(t *testing.T) {
		assert := assert.New(t)

		report := NewV2Report(sampleReportV2())
		_, err := report.PlatformInfo().AliasCheckComplete()
		fieldErr := &UnsupportedFieldError{}
		assert.ErrorAs(err, &fieldErr)
	})
}

func TestMeasurableBytes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	sample := sampleReportV3()
	raw := sample.Marshal()
	report, err := ParseReport(raw[:])
	require.NoError(err)

	measurable, err := report.MeasurableBytes()
	require.NoError(err)
	assert.Equal(raw[:SignedDataSize], measurable[:])

	// The signature must not be part of the measurable bytes.
	_, err = ParseReport(raw[:])
	require.NoError(err)
	rawFlipped := raw
	rawFlipped[SignedDataSize] ^= 0xFF
	flipped, err := ParseReport(rawFlipped[:])
	require.NoError(err)
	flippedMeasurable, err := flipped.MeasurableBytes()
	require.NoError(err)
	assert.Equal(measurable, flippedMeasurable)
}

func TestZeroReportFacade(t *testing.T) {
	assert := assert.New(t)

	var report AttestationReport
	_, err := report.Marshal()
	assert.Error(err)
	_, err = report.MeasurableBytes()
	assert.Error(err)
}

func FuzzParseReport(f *testing.F) {
	sample := sampleReportV2()
	seed := sample.Marshal()
	f.Add(seed[:])
	sample3 := sampleReportV3()
	seed3 := sample3.Marshal()
	f.Add(seed3[:])
	f.Fuzz(func(t *testing.T, a []byte) {
		assert := assert.New(t)
		assert.NotPanics(func() {
			_, _ = ParseReport(a)
		})
	})
}
