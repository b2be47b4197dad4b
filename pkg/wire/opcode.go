package wire

// Opcode identifies a BCM message family.
// Values match the kernel broadcast-manager opcode set.
type Opcode uint32

const (
	// OpTxSetup creates or updates a cyclic transmission task.
	OpTxSetup Opcode = 1

	// OpTxDelete removes a cyclic transmission task.
	OpTxDelete Opcode = 2

	// OpTxRead requests the properties of a transmission task.
	OpTxRead Opcode = 3

	// OpTxSend transmits exactly one frame, once.
	OpTxSend Opcode = 4

	// OpTxStatus is the reply to OpTxRead.
	OpTxStatus Opcode = 5

	// OpTxExpired notifies that a counted cyclic task finished ival1.
	OpTxExpired Opcode = 6

	// OpRxSetup installs or updates a receive filter.
	OpRxSetup Opcode = 7

	// OpRxDelete removes a receive filter.
	OpRxDelete Opcode = 8

	// OpRxRead requests the properties of a receive filter.
	OpRxRead Opcode = 9

	// OpRxStatus is the reply to OpRxRead.
	OpRxStatus Opcode = 10

	// OpRxTimeout notifies that a monitored cyclic frame went absent.
	OpRxTimeout Opcode = 11

	// OpRxChanged notifies a first reception or a content change.
	OpRxChanged Opcode = 12
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpTxSetup:
		return "TX_SETUP"
	case OpTxDelete:
		return "TX_DELETE"
	case OpTxRead:
		return "TX_READ"
	case OpTxSend:
		return "TX_SEND"
	case OpTxStatus:
		return "TX_STATUS"
	case OpTxExpired:
		return "TX_EXPIRED"
	case OpRxSetup:
		return "RX_SETUP"
	case OpRxDelete:
		return "RX_DELETE"
	case OpRxRead:
		return "RX_READ"
	case OpRxStatus:
		return "RX_STATUS"
	case OpRxTimeout:
		return "RX_TIMEOUT"
	case OpRxChanged:
		return "RX_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the opcode is part of the protocol.
func (o Opcode) IsValid() bool {
	return o >= OpTxSetup && o <= OpRxChanged
}

// IsEvent returns true for the two opcodes the remote side may emit
// unsolicited on the receive path.
func (o Opcode) IsEvent() bool {
	return o == OpRxChanged || o == OpRxTimeout
}

// Flags is the header flag bitfield.
type Flags uint32

const (
	// FlagSetTimer installs the task's interval configuration.
	FlagSetTimer Flags = 0x0001

	// FlagStartTimer starts the cyclic timer immediately.
	FlagStartTimer Flags = 0x0002

	// FlagTxCountEvt requests an OpTxExpired event when count runs out.
	FlagTxCountEvt Flags = 0x0004

	// FlagTxAnnounce forces an immediate transmission after an update,
	// even mid-cycle.
	FlagTxAnnounce Flags = 0x0008

	// FlagTxCopyID copies the header ID into the attached frames.
	FlagTxCopyID Flags = 0x0010

	// FlagRxFilterID notifies on every reception of the ID regardless of
	// payload content.
	FlagRxFilterID Flags = 0x0020

	// FlagRxCheckDLC treats payload length changes as content changes.
	FlagRxCheckDLC Flags = 0x0040

	// FlagRxNoAutotimer disables the automatic timeout monitor.
	FlagRxNoAutotimer Flags = 0x0080

	// FlagRxAnnounceResume announces the first frame after a timeout.
	FlagRxAnnounceResume Flags = 0x0100

	// FlagTxResetMultiIdx restarts a sequence at its first frame.
	FlagTxResetMultiIdx Flags = 0x0200

	// FlagRxRTRFrame marks remote transmission request handling.
	FlagRxRTRFrame Flags = 0x0400

	// FlagFDFrame selects the FD frame-cell layout for this message.
	FlagFDFrame Flags = 0x0800
)

// Has returns true if all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}
