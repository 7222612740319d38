/*
# SEV-SNP Attestation Data Types

This package contains data types and parsing functions for AMD SEV-SNP guest
attestation reports.

## Report layout

Every report is a single fixed-size, little-endian structure of 1184 bytes.
The version discriminant at offset 0 selects between the two supported
layouts, which differ only in the span at offset 0x188:

	Offset  Size  Field
	0x000   4     Version (2 or 3)
	0x004   4     Guest SVN
	0x008   8     Guest Policy (bit-field)
	0x010   16    Family ID
	0x020   16    Image ID
	0x030   4     VMPL
	0x034   4     Signature Algorithm
	0x038   8     Current TCB
	0x040   8     Platform Info (bit-field, V1 or V2)
	0x048   4     Key Info (bit-field)
	0x04C   4     reserved
	0x050   64    Report Data
	0x090   48    Measurement
	0x0C0   32    Host Data
	0x0E0   48    ID Key Digest
	0x110   48    Author Key Digest
	0x140   32    Report ID
	0x160   32    Report ID (Migration Agent)
	0x180   8     Reported TCB
	0x188   24    V2: reserved / V3: CPUID family, model, stepping + 21 reserved
	0x1A0   64    Chip ID
	0x1E0   8     Committed TCB
	0x1E8   4     Current build, minor, major + 1 reserved
	0x1EC   4     Committed build, minor, major + 1 reserved
	0x1F0   8     Launch TCB
	0x1F8   168   reserved
	0x2A0   512   Signature (R[72] | S[72] | 368 reserved)

The firmware signs bytes [0, 0x2A0) with the VCEK or VLEK; the trailing
signature block is excluded from the signed span.

Based on Table 21, Table 22 and Table 23 of the SNP ABI specification:
https://www.amd.com/system/files/TechDocs/56860.pdf
*/
package types
