package irtoy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

var (
	ErrCodeTooShort  = errors.New("ir code must be at least 2 bytes")
	ErrCodeOddLength = errors.New("ir code length must be a multiple of 2")
	ErrZeroCredit    = errors.New("device advertised a zero-byte transmit buffer")
	ErrPrescaleRange = errors.New("sample timer prescale must be in range 0..7")
)

// Mode is the device state as tracked by the driver. The device is in
// exactly one mode at any time and only the driver transitions it.
type Mode int

const (
	ModeReset Mode = iota
	ModeSampling
	ModeTransmit
)

// TxResult reports the outcome of TransmitCode.
type TxResult int

const (
	TxOk TxResult = iota
	TxInvalidCode
	TxTransportFault
	TxProtocolFault
)

// IrCode is a recorded infrared signal, terminated
// by the two-byte Sentinel once validated.
type IrCode []byte

// Terminated reports whether c already ends with the sentinel.
func (c IrCode) Terminated() bool {
	n := len(c)
	return n >= 2 && c[n-2] == Sentinel[0] && c[n-1] == Sentinel[1]
}

// Settings is the device's 8-byte settings descriptor.
type Settings struct {
	PWMMatch     uint8  // PR2 pulse-width modulator match value
	DutyCycle    uint8
	PWMPrescaler uint8
	TxPrescaler  uint8
	ClockHz      uint32
}

// Version is the device's hardware identifier and firmware revision.
type Version struct {
	Hardware string
	Revision uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%s-%d", v.Hardware, v.Revision)
}

// FrequencyReport holds raw timing of the previous infrared signal:
// sample timer values at the 2nd/3rd/4th rising edge, and the total
// pulse count since the last sentinel.
type FrequencyReport struct {
	Edge2, Edge3, Edge4 uint16
	PulseCount          uint16
}

// settleDelay is the empirically required settle time after a reset and
// after the final transmit chunk. Removing it loses bytes on real hardware.
const settleDelay = time.Millisecond * 50

// IRToy drives a USB IR Toy over its sampling mode serial protocol.
// It owns the Connection exclusively; methods must not be called
// concurrently, the caller serializes access.
type IRToy struct {
	conn            Connection
	mode            Mode
	lastTx          TxResult
	protocolVersion string
}

// NewIRToy flushes conn and brings the device to sampling mode, the
// baseline idle state every operation returns to.
func NewIRToy(conn Connection) (*IRToy, error) {
	t := &IRToy{conn: conn}
	if err := conn.Flush(); err != nil {
		return nil, fmt.Errorf("flushing connection: %s", err)
	}
	if err := t.SetSamplingMode(); err != nil {
		return nil, fmt.Errorf("entering sampling mode: %s", err)
	}
	return t, nil
}

// Close closes the underlying connection. The driver is not usable
// afterwards; a blocked ReceiveSignal errors out.
func (t *IRToy) Close() error {
	return t.conn.Close()
}

func (t *IRToy) Mode() Mode {
	return t.mode
}

// Snapshot is the externally visible state of the driver at a given time.
type Snapshot struct {
	Time            time.Time
	Mode            Mode
	ProtocolVersion string
	LastTx          TxResult
}

// Snapshot retrieves the state of t at a given time.
func (t *IRToy) Snapshot() Snapshot {
	return Snapshot{
		Time:            time.Now(),
		Mode:            t.mode,
		ProtocolVersion: t.protocolVersion,
		LastTx:          t.lastTx,
	}
}

func (t *IRToy) LastTx() TxResult {
	return t.lastTx
}

// ProtocolVersion returns the 3-byte version string the device
// announced on the last sampling mode entry.
func (t *IRToy) ProtocolVersion() string {
	return t.protocolVersion
}

func (t *IRToy) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// write pushes p out in full, the Connection may accept fewer
// bytes per call than asked.
func (t *IRToy) write(p []byte) error {
	for len(p) > 0 {
		n, err := t.conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (t *IRToy) writeByte(b byte) error {
	return t.write([]byte{b})
}

// Reset returns the device to the firmware's native remote-decoder
// state. The device sends no acknowledgment.
func (t *IRToy) Reset() error {
	if err := t.write(Sentinel); err != nil {
		return err
	}
	if err := t.write([]byte{OpReset, OpReset, OpReset, OpReset, OpReset}); err != nil {
		return err
	}
	t.mode = ModeReset
	time.Sleep(settleDelay)
	return nil
}

// SetSamplingMode resets the device then enters sampling mode, reading
// the 3-byte protocol version acknowledgment.
func (t *IRToy) SetSamplingMode() error {
	if err := t.Reset(); err != nil {
		return err
	}
	if err := t.writeByte(cmdSamplingMode); err != nil {
		return err
	}
	buf, err := t.read(3)
	if err != nil {
		return fmt.Errorf("reading protocol version: %s", err)
	}
	t.protocolVersion = string(buf)
	t.mode = ModeSampling
	return nil
}

// setTransmitMode enables handshake, byte-count report and
// notify-on-complete, then enters transmit mode. Returns the initial
// free-buffer size, the first flow-control credit.
func (t *IRToy) setTransmitMode() (int, error) {
	for _, op := range []byte{OpTxHandshake, OpTxByteReport, OpTxNotifyComplete} {
		if err := t.writeByte(op); err != nil {
			return 0, err
		}
	}
	if err := t.writeByte(OpTransmit); err != nil {
		return 0, err
	}
	buf, err := t.read(1)
	if err != nil {
		return 0, err
	}
	t.mode = ModeTransmit
	return int(buf[0]), nil
}

// ReceiveSignal records a single infrared signal: it forces sampling
// mode then reads byte per byte until the sentinel terminates the code.
// There is no timeout, it blocks until a remote button is pressed or
// the connection is closed.
func (t *IRToy) ReceiveSignal() (IrCode, error) {
	if err := t.SetSamplingMode(); err != nil {
		return nil, err
	}
	var code IrCode
	for !code.Terminated() {
		b, err := t.read(1)
		if err != nil {
			return nil, err
		}
		code = append(code, b[0])
	}
	return code, nil
}

// TransmitCode replays code through the infrared transmitter. The code
// must be at least 2 bytes and of even length; the sentinel is appended
// if absent. Writes are chunked to the device-advertised credit, one
// credit byte read back after every chunk. Whatever the outcome the
// device is put back in sampling mode before returning.
func (t *IRToy) TransmitCode(code IrCode) (TxResult, error) {
	if len(code) < 2 {
		return t.txDone(TxInvalidCode, ErrCodeTooShort)
	}
	if len(code)%2 != 0 {
		return t.txDone(TxInvalidCode, ErrCodeOddLength)
	}
	if !code.Terminated() {
		code = append(append(IrCode{}, code...), Sentinel...)
	}

	defer func() {
		if err := t.SetSamplingMode(); err != nil {
			log.Println("restoring sampling mode:", err)
		}
	}()

	credit, err := t.setTransmitMode()
	if err != nil {
		return t.txDone(t.abortTx(err))
	}

	sent := 0
	for sent < len(code) {
		if credit <= 0 {
			return t.txDone(t.abortTx(ErrZeroCredit))
		}
		end := sent + credit
		if end > len(code) {
			end = len(code)
		}
		if err := t.write(code[sent:end]); err != nil {
			return t.txDone(t.abortTx(err))
		}
		sent = end
		b, err := t.read(1)
		if err != nil {
			return t.txDone(t.abortTx(err))
		}
		credit = int(b[0])
	}

	// The device needs a moment to finish pulsing
	// before it writes the completion report.
	time.Sleep(settleDelay)
	report, err := t.read(4)
	if err != nil {
		return t.txDone(t.abortTx(err))
	}
	// report: 1 reserved byte, uint16 big-endian byte count, status byte
	if report[3] != txComplete {
		log.Printf("transmit incomplete: status %q after %d bytes",
			report[3], binary.BigEndian.Uint16(report[1:3]))
		if err := t.Reset(); err != nil {
			log.Println("reset after incomplete transmit:", err)
		}
		return t.txDone(TxProtocolFault, nil)
	}
	return t.txDone(TxOk, nil)
}

// abortTx is the recovery path for transport faults mid-transmit:
// log, best-effort reset, propagate.
func (t *IRToy) abortTx(err error) (TxResult, error) {
	log.Println("transmission abort:", err)
	if rerr := t.Reset(); rerr != nil {
		log.Println("reset after failed transmit:", rerr)
	}
	return TxTransportFault, err
}

func (t *IRToy) txDone(res TxResult, err error) (TxResult, error) {
	t.lastTx = res
	return res, err
}

// GetVersion queries hardware identifier and firmware revision.
// Sampling mode is restored even when the read fails.
func (t *IRToy) GetVersion() (v Version, err error) {
	defer func() {
		if serr := t.SetSamplingMode(); serr != nil && err == nil {
			err = serr
		}
	}()
	if err = t.Reset(); err != nil {
		return
	}
	if err = t.writeByte(cmdVersion); err != nil {
		return
	}
	var buf []byte
	if buf, err = t.read(4); err != nil {
		return
	}
	v.Hardware = string(buf[:2])
	v.Revision = binary.BigEndian.Uint16(buf[2:4])
	return
}

// GetSettings queries the 8-byte settings descriptor.
func (t *IRToy) GetSettings() (Settings, error) {
	if err := t.writeByte(OpSettingsReport); err != nil {
		return Settings{}, err
	}
	buf, err := t.read(8)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		PWMMatch:     buf[0],
		DutyCycle:    buf[1],
		PWMPrescaler: buf[2],
		TxPrescaler:  buf[3],
		ClockHz:      binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// GetFrequencyReport queries raw timing of the previous signal.
func (t *IRToy) GetFrequencyReport() (FrequencyReport, error) {
	if err := t.writeByte(OpFrequencyReport); err != nil {
		return FrequencyReport{}, err
	}
	buf, err := t.read(8)
	if err != nil {
		return FrequencyReport{}, err
	}
	return FrequencyReport{
		Edge2:      binary.BigEndian.Uint16(buf[0:2]),
		Edge3:      binary.BigEndian.Uint16(buf[2:4]),
		Edge4:      binary.BigEndian.Uint16(buf[4:6]),
		PulseCount: binary.BigEndian.Uint16(buf[6:8]),
	}, nil
}

// SetSampleTimer sets the sample timer prescaler, 0 (1:2) to 7 (1:256).
// Fire and forget, the device sends no response.
func (t *IRToy) SetSampleTimer(prescale byte) error {
	if prescale > 7 {
		return ErrPrescaleRange
	}
	return t.write([]byte{OpSampleTimer, prescale})
}

// SetTxModulation sets the transmit modulation PWM match value (PR2)
// and duty cycle. Default modulation is 36kHz.
func (t *IRToy) SetTxModulation(pr2, dutyCycle byte) error {
	return t.write([]byte{OpModulationTimer, pr2, dutyCycle})
}

// MuteLEDOn disables the activity LED during sample mode.
func (t *IRToy) MuteLEDOn() error {
	return t.writeByte(OpLEDMuteOn)
}

// MuteLEDOff re-enables the activity LED during sample mode.
func (t *IRToy) MuteLEDOff() error {
	return t.writeByte(OpLEDMuteOff)
}

func (t *IRToy) LEDOn() error {
	return t.writeByte(OpLEDOn)
}

func (t *IRToy) LEDOff() error {
	return t.writeByte(OpLEDOff)
}
