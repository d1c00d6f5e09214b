package lights

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/smithj208/BuildBotStatusLight/irtoy"
)

// ButtonNames are the 24 keys of the common RGB globe/strip remotes,
// row by row.
var ButtonNames = []string{
	"brightnessDown", "brightnessUp", "off", "on",
	"red", "green", "blue", "white",
	"red2", "green2", "blue2", "flash",
	"orange", "cyan", "purple", "strobe",
	"orange2", "cyan2", "violet", "fade",
	"yellow", "teal", "lavender", "smooth",
}

// Colours are the button names SetColour will transmit.
var Colours = []string{
	"red", "green", "blue", "white",
	"red2", "green2", "blue2",
	"orange", "cyan", "purple",
	"orange2", "cyan2", "violet",
	"yellow", "teal", "lavender",
}

// Commands are the button names SendCommand will transmit.
var Commands = []string{
	"brightnessUp", "brightnessDown",
	"flash", "strobe", "fade", "smooth",
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// IsColour reports whether name is in the recognized colour set.
func IsColour(name string) bool {
	return contains(Colours, name)
}

// IsCommand reports whether name is in the recognized command set.
func IsCommand(name string) bool {
	return contains(Commands, name)
}

// IsButton reports whether name is one of the 24 remote keys.
func IsButton(name string) bool {
	return contains(ButtonNames, name)
}

// ButtonMap maps a button name to its recorded infrared code.
type ButtonMap map[string]irtoy.IrCode

// EncodeButtons serializes m to its persisted form: a JSON object of
// button name to array of byte values, sentinel included.
func EncodeButtons(m ButtonMap) ([]byte, error) {
	out := make(map[string][]int, len(m))
	for name, code := range m {
		ints := make([]int, len(code))
		for i, b := range code {
			ints[i] = int(b)
		}
		out[name] = ints
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecodeButtons parses the persisted form back into a ButtonMap. Any
// unknown button name, non-integer or out-of-range entry, or truncated
// code fails the whole decode; no partial map is ever returned.
func DecodeButtons(data []byte) (ButtonMap, error) {
	var raw map[string][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt button file: %s", err)
	}
	m := make(ButtonMap, len(raw))
	for name, ints := range raw {
		if !IsButton(name) {
			return nil, fmt.Errorf("corrupt button file: unknown button \"%s\"", name)
		}
		if len(ints) < 2 {
			return nil, fmt.Errorf("corrupt button file: code for \"%s\" is too short", name)
		}
		code := make(irtoy.IrCode, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("corrupt button file: value %d out of range in \"%s\"", v, name)
			}
			code[i] = byte(v)
		}
		if !code.Terminated() {
			return nil, fmt.Errorf("corrupt button file: code for \"%s\" lacks the terminator", name)
		}
		m[name] = code
	}
	return m, nil
}

// LoadButtons reads the button file at path. A missing
// file is not an error, it yields an empty map.
func LoadButtons(path string) (ButtonMap, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ButtonMap{}, nil
		}
		return nil, err
	}
	return DecodeButtons(data)
}

// SaveButtons writes m to the button file at path.
func SaveButtons(m ButtonMap, path string) error {
	data, err := EncodeButtons(m)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}
