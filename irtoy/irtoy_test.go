package irtoy

import (
	"bytes"
	"io"
	"testing"
)

// fakeConn scripts the device side of the protocol: reads are served
// from a prepared byte sequence, writes are accumulated for inspection.
type fakeConn struct {
	reads  []byte
	writes bytes.Buffer
	closed bool
}

func (f *fakeConn) Read(p []byte) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	if len(f.reads) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.reads)
	f.reads = f.reads[n:]
	return n, nil
}

func (f *fakeConn) Write(p []byte) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	return f.writes.Write(p)
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) Flush() error {
	return nil
}

// samplingAck is what the device answers to an 'S' command.
const samplingAck = "S01"

var resetBytes = []byte{0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00}

func newTestToy(t *testing.T, script []byte) (*IRToy, *fakeConn) {
	t.Helper()
	conn := &fakeConn{reads: append([]byte(samplingAck), script...)}
	toy, err := NewIRToy(conn)
	if err != nil {
		t.Fatal(err)
	}
	conn.writes.Reset()
	return toy, conn
}

func TestSetSamplingMode(t *testing.T) {
	conn := &fakeConn{reads: []byte(samplingAck)}
	toy, err := NewIRToy(conn)
	if err != nil {
		t.Fatal(err)
	}
	if toy.Mode() != ModeSampling {
		t.Errorf("mode after init: got %s, want %s", toy.Mode(), ModeSampling)
	}
	if toy.ProtocolVersion() != samplingAck {
		t.Errorf("protocol version: got %q, want %q", toy.ProtocolVersion(), samplingAck)
	}
	want := append(append([]byte{}, resetBytes...), cmdSamplingMode)
	if !bytes.Equal(conn.writes.Bytes(), want) {
		t.Errorf("wire bytes: got % x, want % x", conn.writes.Bytes(), want)
	}
}

func TestOpcodeValues(t *testing.T) {
	// pins the opcodes to the wire protocol, independent of how the
	// constants are declared
	for _, tc := range []struct {
		name string
		op   byte
		want byte
	}{
		{"reset", OpReset, 0x00},
		{"transmit", OpTransmit, 0x03},
		{"frequency report", OpFrequencyReport, 0x04},
		{"sample timer", OpSampleTimer, 0x05},
		{"modulation timer", OpModulationTimer, 0x06},
		{"mute led on", OpLEDMuteOn, 0x10},
		{"mute led off", OpLEDMuteOff, 0x11},
		{"led on", OpLEDOn, 0x12},
		{"led off", OpLEDOff, 0x13},
		{"settings report", OpSettingsReport, 0x23},
		{"tx byte report", OpTxByteReport, 0x24},
		{"tx notify complete", OpTxNotifyComplete, 0x25},
		{"tx handshake", OpTxHandshake, 0x26},
	} {
		if tc.op != tc.want {
			t.Errorf("%s: got 0x%02x, want 0x%02x", tc.name, tc.op, tc.want)
		}
	}
}

func TestTransmitCode(t *testing.T) {
	code := IrCode{0x01, 0x02, 0x03, 0x04, 0xff, 0xff}
	script := []byte{
		4,  // initial credit
		4,  // credit after first chunk
		62, // credit after final chunk
		't', 0x00, 0x06, 'C', // completion report
	}
	script = append(script, samplingAck...) // restored sampling mode
	toy, conn := newTestToy(t, script)

	res, err := toy.TransmitCode(code)
	if err != nil {
		t.Fatal(err)
	}
	if res != TxOk {
		t.Errorf("result: got %s, want %s", res, TxOk)
	}
	if toy.Mode() != ModeSampling {
		t.Errorf("mode after transmit: got %s, want %s", toy.Mode(), ModeSampling)
	}

	// transmit mode entry pinned to the documented bytes:
	// handshake 0x26, byte report 0x24, notify 0x25, transmit 0x03
	var want []byte
	want = append(want, 0x26, 0x24, 0x25, 0x03)
	want = append(want, code...)       // both chunks, in order
	want = append(want, resetBytes...) // restored sampling mode
	want = append(want, cmdSamplingMode)
	if !bytes.Equal(conn.writes.Bytes(), want) {
		t.Errorf("wire bytes:\ngot  % x\nwant % x", conn.writes.Bytes(), want)
	}
}

func TestTransmitCodeAppendsSentinel(t *testing.T) {
	code := IrCode{0x10, 0x20, 0x30, 0x40}
	script := []byte{62, 62, 't', 0x00, 0x06, 'C'}
	script = append(script, samplingAck...)
	toy, conn := newTestToy(t, script)

	res, err := toy.TransmitCode(code)
	if err != nil {
		t.Fatal(err)
	}
	if res != TxOk {
		t.Fatalf("result: got %s, want %s", res, TxOk)
	}
	sent := conn.writes.Bytes()[4 : 4+6] // skip mode-entry opcodes
	want := []byte{0x10, 0x20, 0x30, 0x40, 0xff, 0xff}
	if !bytes.Equal(sent, want) {
		t.Errorf("transmitted bytes: got % x, want % x", sent, want)
	}
	// caller's slice must not grow a sentinel
	if len(code) != 4 {
		t.Errorf("caller code modified, len %d", len(code))
	}
}

func TestTransmitCodeUnderrun(t *testing.T) {
	code := IrCode{0x01, 0x02, 0xff, 0xff}
	script := []byte{62, 62, 't', 0x00, 0x04, 'F'}
	script = append(script, samplingAck...)
	toy, conn := newTestToy(t, script)

	res, err := toy.TransmitCode(code)
	if err != nil {
		t.Fatal(err)
	}
	if res != TxProtocolFault {
		t.Errorf("result: got %s, want %s", res, TxProtocolFault)
	}
	if toy.Mode() != ModeSampling {
		t.Errorf("mode after underrun: got %s, want %s", toy.Mode(), ModeSampling)
	}
	// a reset must be issued before the sampling mode restore:
	// code bytes, then two full reset sequences
	var want []byte
	want = append(want, 0x26, 0x24, 0x25, 0x03) // transmit mode entry
	want = append(want, code...)
	want = append(want, resetBytes...) // recovery reset
	want = append(want, resetBytes...) // sampling mode restore
	want = append(want, cmdSamplingMode)
	if !bytes.Equal(conn.writes.Bytes(), want) {
		t.Errorf("wire bytes:\ngot  % x\nwant % x", conn.writes.Bytes(), want)
	}
}

func TestTransmitCodeTransportFault(t *testing.T) {
	code := IrCode{0x01, 0x02, 0xff, 0xff}
	// initial credit only; the read after the chunk hits EOF
	script := []byte{62}
	toy, _ := newTestToy(t, script)

	res, err := toy.TransmitCode(code)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if res != TxTransportFault {
		t.Errorf("result: got %s, want %s", res, TxTransportFault)
	}
}

func TestTransmitCodeModeEntryFault(t *testing.T) {
	code := IrCode{0x01, 0x02, 0xff, 0xff}
	// empty script so the initial credit read hits EOF before any
	// code byte goes out
	toy, conn := newTestToy(t, nil)

	res, err := toy.TransmitCode(code)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if res != TxTransportFault {
		t.Errorf("result: got %s, want %s", res, TxTransportFault)
	}
	// even a failed mode switch must attempt the sampling restore
	tail := append(append([]byte{}, resetBytes...), cmdSamplingMode)
	got := conn.writes.Bytes()
	if !bytes.HasSuffix(got, tail) {
		t.Errorf("wire bytes: got % x, want % x suffix", got, tail)
	}
}

func TestTransmitCodeInvalid(t *testing.T) {
	toy := &IRToy{conn: &fakeConn{}}
	for _, tt := range []struct {
		code IrCode
		err  error
	}{
		{IrCode{0xff}, ErrCodeTooShort},
		{IrCode{}, ErrCodeTooShort},
		{IrCode{0x01, 0x02, 0x03}, ErrCodeOddLength},
	} {
		res, err := toy.TransmitCode(tt.code)
		if res != TxInvalidCode {
			t.Errorf("code % x: result %s, want %s", tt.code, res, TxInvalidCode)
		}
		if err != tt.err {
			t.Errorf("code % x: error %v, want %v", tt.code, err, tt.err)
		}
	}
	conn := toy.conn.(*fakeConn)
	if conn.writes.Len() != 0 {
		t.Errorf("invalid codes reached the wire: % x", conn.writes.Bytes())
	}
}

func TestReceiveSignal(t *testing.T) {
	signal := []byte{0x2a, 0x1b, 0x00, 0xff, 0x03, 0x7f, 0xff, 0xff}
	toy, _ := newTestToy(t, append([]byte(samplingAck), signal...))

	code, err := toy.ReceiveSignal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(code, signal) {
		t.Errorf("code: got % x, want % x", code, signal)
	}
	if !code.Terminated() {
		t.Error("code does not end with sentinel")
	}
	if len(code)%2 != 0 {
		t.Errorf("code length %d is odd", len(code))
	}
}

func TestReceiveSignalLoneFF(t *testing.T) {
	// a single 0xff mid-signal must not terminate the capture
	signal := []byte{0xff, 0x10, 0xff, 0xff}
	toy, _ := newTestToy(t, append([]byte(samplingAck), signal...))

	code, err := toy.ReceiveSignal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(code, signal) {
		t.Errorf("code: got % x, want % x", code, signal)
	}
}

func TestGetVersion(t *testing.T) {
	script := []byte{'2', '2', 0x00, 0x16}
	script = append(script, samplingAck...)
	toy, _ := newTestToy(t, script)

	v, err := toy.GetVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v.Hardware != "22" {
		t.Errorf("hardware: got %q, want %q", v.Hardware, "22")
	}
	if v.Revision != 22 {
		t.Errorf("revision: got %d, want 22", v.Revision)
	}
	if toy.Mode() != ModeSampling {
		t.Errorf("mode after version query: got %s, want %s", toy.Mode(), ModeSampling)
	}
}

func TestGetVersionRestoresSampling(t *testing.T) {
	// version read fails, the sampling mode restore must still be attempted
	toy, conn := newTestToy(t, nil)

	_, err := toy.GetVersion()
	if err == nil {
		t.Fatal("expected read error")
	}
	var want []byte
	want = append(want, resetBytes...) // version query reset
	want = append(want, cmdVersion)
	want = append(want, resetBytes...) // sampling mode restore
	want = append(want, cmdSamplingMode)
	if !bytes.Equal(conn.writes.Bytes(), want) {
		t.Errorf("wire bytes:\ngot  % x\nwant % x", conn.writes.Bytes(), want)
	}
}

func TestGetSettings(t *testing.T) {
	// 36MHz clock
	toy, _ := newTestToy(t, []byte{10, 20, 3, 7, 0x02, 0x25, 0x51, 0x00})

	s, err := toy.GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	want := Settings{PWMMatch: 10, DutyCycle: 20, PWMPrescaler: 3, TxPrescaler: 7, ClockHz: 36000000}
	if s != want {
		t.Errorf("settings: got %+v, want %+v", s, want)
	}
}

func TestGetFrequencyReport(t *testing.T) {
	toy, _ := newTestToy(t, []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x00, 0x2a})

	r, err := toy.GetFrequencyReport()
	if err != nil {
		t.Fatal(err)
	}
	want := FrequencyReport{Edge2: 256, Edge3: 512, Edge4: 768, PulseCount: 42}
	if r != want {
		t.Errorf("report: got %+v, want %+v", r, want)
	}
}

func TestSetSampleTimer(t *testing.T) {
	toy, conn := newTestToy(t, nil)
	if err := toy.SetSampleTimer(8); err != ErrPrescaleRange {
		t.Errorf("prescale 8: got %v, want %v", err, ErrPrescaleRange)
	}
	if conn.writes.Len() != 0 {
		t.Error("out of range prescale reached the wire")
	}
	if err := toy.SetSampleTimer(7); err != nil {
		t.Fatal(err)
	}
	want := []byte{OpSampleTimer, 7}
	if !bytes.Equal(conn.writes.Bytes(), want) {
		t.Errorf("wire bytes: got % x, want % x", conn.writes.Bytes(), want)
	}
}

func TestIrCodeTerminated(t *testing.T) {
	for _, tt := range []struct {
		code IrCode
		want bool
	}{
		{IrCode{0x01, 0x02, 0xff, 0xff}, true},
		{IrCode{0xff, 0xff}, true},
		{IrCode{0x01, 0x02}, false},
		{IrCode{0xff}, false},
		{IrCode{}, false},
	} {
		if got := tt.code.Terminated(); got != tt.want {
			t.Errorf("Terminated(% x): got %v, want %v", tt.code, got, tt.want)
		}
	}
}
