package irtoy

import (
	"errors"
	"fmt"
	"strconv"
)

// This file contains (un)marshallers for the driver's enum types,
// allowing string values instead of raw ints when talking to
// front-ends or config files.

var modeNames = map[Mode]string{
	ModeReset:    "Reset",
	ModeSampling: "Sampling",
	ModeTransmit: "Transmit",
}

var txResultNames = map[TxResult]string{
	TxOk:             "Ok",
	TxInvalidCode:    "InvalidCode",
	TxTransportFault: "TransportFault",
	TxProtocolFault:  "ProtocolFault",
}

// ---- type Mode int

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalJSON() ([]byte, error) {
	b, err := m.MarshalText()
	if err == nil {
		b = []byte(fmt.Sprintf("\"%s\"", string(b)))
	}
	return b, err
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	dataLength := len(data)
	if dataLength < 2 || data[0] != '"' || data[dataLength-1] != '"' {
		return errors.New("Mode.UnmarshalJSON: Invalid JSON provided")
	}
	return m.UnmarshalText(data[1 : dataLength-1])
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	str := string(b)
	for v, name := range modeNames {
		if name == str {
			*m = v
			return nil
		}
	}
	i, err := strconv.Atoi(str)
	if err == nil {
		*m = Mode(i)
		return nil
	}
	return fmt.Errorf("cannot unmarshal \"%s\" to Mode. Is it mispelled?", str)
}

// ---- type TxResult int

func (r TxResult) String() string {
	if s, ok := txResultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("TxResult(%d)", int(r))
}

func (r TxResult) MarshalJSON() ([]byte, error) {
	b, err := r.MarshalText()
	if err == nil {
		b = []byte(fmt.Sprintf("\"%s\"", string(b)))
	}
	return b, err
}

func (r *TxResult) UnmarshalJSON(data []byte) error {
	dataLength := len(data)
	if dataLength < 2 || data[0] != '"' || data[dataLength-1] != '"' {
		return errors.New("TxResult.UnmarshalJSON: Invalid JSON provided")
	}
	return r.UnmarshalText(data[1 : dataLength-1])
}

func (r TxResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *TxResult) UnmarshalText(b []byte) error {
	str := string(b)
	for v, name := range txResultNames {
		if name == str {
			*r = v
			return nil
		}
	}
	i, err := strconv.Atoi(str)
	if err == nil {
		*r = TxResult(i)
		return nil
	}
	return fmt.Errorf("cannot unmarshal \"%s\" to TxResult. Is it mispelled?", str)
}
