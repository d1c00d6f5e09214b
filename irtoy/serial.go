package irtoy

import (
	"errors"
	"io"
	"log"
	"time"

	"go.bug.st/serial.v1"
)

var ErrNoSerialPortFound = errors.New("didn't find any available serial port")
var ErrProbeTimeout = errors.New("no answer from device during probe")

// The IR Toy is a USB CDC device, baud settings are ignored by the
// hardware but the stack wants some anyway.
var DefaultSerialConfig = &serial.Mode{
	BaudRate: 115200,
	Parity:   serial.NoParity,
	DataBits: 8,
	StopBits: serial.OneStopBit,
}

const probeTimeout = time.Second * 2

// Connection is the byte transport the driver owns. Reads block until
// the buffer is filled or the port errors; a blocked read is only ever
// ended by closing the connection.
type Connection interface {
	io.ReadWriteCloser
	Flush() error
}

type SerialConnection struct {
	serial.Port
	path   string
	config *serial.Mode
}

func NewSerial(port serial.Port, config *serial.Mode, name string) *SerialConnection {
	return &SerialConnection{
		Port:   port,
		path:   name,
		config: config,
	}
}

// Flush drops anything pending in both directions, typically stale
// decoder-mode noise sitting in the device's USB buffer.
func (sc *SerialConnection) Flush() error {
	if err := sc.Port.ResetInputBuffer(); err != nil {
		return err
	}
	return sc.Port.ResetOutputBuffer()
}

// Path returns device name / path of serial port.
func (sc *SerialConnection) Path() string {
	return sc.path
}

// OpenPort opens the named serial device with config,
// or DefaultSerialConfig if config is nil.
func OpenPort(name string, config *serial.Mode) (*SerialConnection, error) {
	if config == nil {
		config = DefaultSerialConfig
	}
	port, err := serial.Open(name, config)
	if err != nil {
		return nil, err
	}
	return NewSerial(port, config, name), nil
}

// FindSerial tries every available serial port until one answers the
// sampling mode handshake. If config is nil, DefaultSerialConfig is used.
func FindSerial(config *serial.Mode) (*SerialConnection, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultSerialConfig
	}
	for _, v := range ports {
		port, err := serial.Open(v, config)
		if err != nil {
			continue
		}
		log.Printf("trying \"%s\"...", v)
		conn := NewSerial(port, config, v)
		if err = probe(conn); err == nil {
			log.Printf("found ir toy on \"%s\"", v)
			return conn, nil
		}
	}
	return nil, ErrNoSerialPortFound
}

// probe attempts the sampling mode handshake on conn. A device that
// doesn't answer leaves the read blocked, so the port is closed to
// unblock it after probeTimeout.
func probe(conn *SerialConnection) error {
	done := make(chan error, 1)
	go func() {
		t := &IRToy{conn: conn}
		if err := conn.Flush(); err != nil {
			done <- err
			return
		}
		done <- t.SetSamplingMode()
	}()
	select {
	case err := <-done:
		if err != nil {
			conn.Close()
		}
		return err
	case <-time.After(probeTimeout):
		conn.Close()
		return ErrProbeTimeout
	}
}
