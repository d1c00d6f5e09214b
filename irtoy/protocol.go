package irtoy

// Sampling mode protocol of the Dangerous Prototypes USB IR Toy,
// see the firmware's IRIO/IRs documentation. Opcodes marked RESERVED
// or UART/IO related are not implemented here.

const (
	OpReset           byte = 0x00
	OpTransmit        byte = 0x03
	OpFrequencyReport byte = 0x04
	OpSampleTimer     byte = 0x05
	OpModulationTimer byte = 0x06
)

const (
	OpLEDMuteOn byte = 0x10 | iota
	OpLEDMuteOff
	OpLEDOn
	OpLEDOff
)

// 0x23 has low bits set, so no | iota here.
const (
	OpSettingsReport   byte = 0x23
	OpTxByteReport     byte = 0x24
	OpTxNotifyComplete byte = 0x25
	OpTxHandshake      byte = 0x26
)

// ASCII commands accepted from the firmware's native remote-decoder state.
const (
	cmdSamplingMode byte = 'S'
	cmdVersion      byte = 'v'
)

// Transmit completion codes, last byte of the 4-byte completion report.
const (
	txComplete byte = 'C'
	txUnderrun byte = 'F'
)

// Sentinel terminates every infrared code on the wire.
var Sentinel = []byte{0xff, 0xff}
