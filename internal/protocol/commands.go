package protocol

// Protocol version implemented by this library.
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0
)

// Command is the top-level request family. Bit 7 is reserved to mark
// replies and is never part of a command id.
type Command uint8

const (
	CmdGetInfo        Command = 0x01
	CmdCommControl    Command = 0x02
	CmdMemoryControl  Command = 0x03
	CmdDataLogControl Command = 0x04
	CmdUserCommand    Command = 0x05
)

// ResponseFlag is OR'ed into the command byte of every reply.
const ResponseFlag uint8 = 0x80

// ResponseCode is the one-byte outcome carried by every response.
// Any code other than CodeOK travels with an empty payload.
type ResponseCode uint8

const (
	CodeOK                 ResponseCode = 0
	CodeInvalidRequest     ResponseCode = 1
	CodeUnsupportedFeature ResponseCode = 2
	CodeOverflow           ResponseCode = 3
	CodeBusy               ResponseCode = 4
	CodeFailureToProceed   ResponseCode = 5
	CodeForbidden          ResponseCode = 6
)

// GetInfo subfunctions.
const (
	SubfnGetProtocolVersion             uint8 = 1
	SubfnGetSoftwareID                  uint8 = 2
	SubfnGetSupportedFeatures           uint8 = 3
	SubfnGetSpecialMemoryRegionCount    uint8 = 4
	SubfnGetSpecialMemoryRegionLocation uint8 = 5
)

// CommControl subfunctions.
const (
	SubfnCommDiscover   uint8 = 1
	SubfnCommHeartbeat  uint8 = 2
	SubfnCommGetParams  uint8 = 3
	SubfnCommConnect    uint8 = 4
	SubfnCommDisconnect uint8 = 5
)

// MemoryControl subfunctions.
const (
	SubfnMemoryRead  uint8 = 1
	SubfnMemoryWrite uint8 = 2
)

// RegionType selects which special-region table a GetInfo query targets.
type RegionType uint8

const (
	RegionReadOnly  RegionType = 0
	RegionForbidden RegionType = 1
)

// Magic constants. Both endpoints carry them verbatim; a Discover or
// Connect request without the right magic is an invalid request.
var (
	DiscoverMagic = [4]byte{0x7E, 0x18, 0xFC, 0x68}
	ConnectMagic  = [4]byte{0x82, 0x90, 0x22, 0x66}
)

// SoftwareIDLength is the size of the build-time firmware identifier.
const SoftwareIDLength = 16

// Frame layout sizes. The CRC-32 trailer covers every byte before it.
const (
	RequestHeaderLength  = 4 // cmd(1) subfn(1) len(2)
	ResponseHeaderLength = 5 // cmd(1) subfn(1) code(1) len(2)
	CRCLength            = 4
)
