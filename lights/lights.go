// Package lights turns symbolic button names into infrared transmissions
// against RGB light fixtures, and owns the persisted button map.
package lights

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/smithj208/BuildBotStatusLight/irtoy"
)

var (
	ErrUnknownButton  = errors.New("button name is not recognized")
	ErrNotRecorded    = errors.New("no code recorded for button")
	ErrTransmitFailed = errors.New("transmit did not complete")
)

// Controller drives the RGB fixtures through an IR Toy. The embedded
// mutex serializes all device access, the driver itself does no locking.
type Controller struct {
	sync.Mutex
	Toy *irtoy.IRToy

	buttons ButtonMap
	path    string

	// Prompt is called before each recording to ask
	// for a button press. Overridable for tests.
	Prompt func(name string)
}

// NewController loads the button file at buttonsPath and wraps toy.
// A corrupt button file fails construction, a missing one doesn't.
func NewController(toy *irtoy.IRToy, buttonsPath string) (*Controller, error) {
	c := &Controller{
		Toy:  toy,
		path: buttonsPath,
		Prompt: func(name string) {
			fmt.Printf("Press %s\n", name)
		},
	}
	if err := c.LoadButtons(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadButtons populates the button map from the configured file,
// replacing whatever was held before.
func (c *Controller) LoadButtons() error {
	m, err := LoadButtons(c.path)
	if err != nil {
		return err
	}
	c.Lock()
	c.buttons = m
	c.Unlock()
	return nil
}

// SaveButtons persists the current button map to the configured file.
func (c *Controller) SaveButtons() error {
	c.Lock()
	defer c.Unlock()
	return SaveButtons(c.buttons, c.path)
}

// transmit looks name up in the button map and replays its code.
// All four public transmit entry points funnel through here, so the
// recorded-or-not distinction is uniform.
func (c *Controller) transmit(name string) error {
	c.Lock()
	defer c.Unlock()
	code, ok := c.buttons[name]
	if !ok {
		return ErrNotRecorded
	}
	res, err := c.Toy.TransmitCode(code)
	if err != nil {
		return err
	}
	if res != irtoy.TxOk {
		return ErrTransmitFailed
	}
	return nil
}

// SetColour transmits the code recorded for a colour button. Names
// outside the colour set are silently ignored; a colour with no
// recorded code is reported as ErrNotRecorded.
func (c *Controller) SetColour(name string) error {
	if !IsColour(name) {
		return nil
	}
	return c.transmit(name)
}

// SendCommand transmits the code recorded for a command button, with
// the same validation behavior as SetColour.
func (c *Controller) SendCommand(name string) error {
	if !IsCommand(name) {
		return nil
	}
	return c.transmit(name)
}

// LightsOn turns the fixtures on.
func (c *Controller) LightsOn() error {
	return c.transmit("on")
}

// LightsOff turns the fixtures off.
func (c *Controller) LightsOff() error {
	return c.transmit("off")
}

// RecordButton captures one button press from the remote and stores it
// under name. The new code is only held in memory until SaveButtons.
func (c *Controller) RecordButton(name string) error {
	if !IsButton(name) {
		return ErrUnknownButton
	}
	c.Lock()
	defer c.Unlock()
	if err := c.Toy.Reset(); err != nil {
		return err
	}
	if err := c.Toy.SetSamplingMode(); err != nil {
		return err
	}
	c.Prompt(name)
	code, err := c.Toy.ReceiveSignal()
	if err != nil {
		return err
	}
	c.buttons[name] = code
	return nil
}

// RecordAllButtons walks every button name in lexical order, records
// each one, then persists the whole map once.
func (c *Controller) RecordAllButtons() error {
	log.Println("protocol version:", c.Toy.ProtocolVersion())
	names := append([]string(nil), ButtonNames...)
	sort.Strings(names)
	for _, name := range names {
		if err := c.RecordButton(name); err != nil {
			return fmt.Errorf("recording \"%s\": %s", name, err)
		}
	}
	return c.SaveButtons()
}

// Recorded lists the button names with a stored code, sorted.
func (c *Controller) Recorded() []string {
	c.Lock()
	defer c.Unlock()
	names := make([]string, 0, len(c.buttons))
	for name := range c.buttons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetVersion passes through to the driver.
func (c *Controller) GetVersion() (irtoy.Version, error) {
	c.Lock()
	defer c.Unlock()
	return c.Toy.GetVersion()
}

// GetSettings passes through to the driver.
func (c *Controller) GetSettings() (irtoy.Settings, error) {
	c.Lock()
	defer c.Unlock()
	return c.Toy.GetSettings()
}

// ProtocolVersion passes through to the driver.
func (c *Controller) ProtocolVersion() string {
	return c.Toy.ProtocolVersion()
}

// Snapshot is the externally visible state of the controller.
type Snapshot struct {
	irtoy.Snapshot
	Recorded []string
}

// Snapshot retrieves driver state plus the recorded button names.
func (c *Controller) Snapshot() Snapshot {
	c.Lock()
	defer c.Unlock()
	names := make([]string, 0, len(c.buttons))
	for name := range c.buttons {
		names = append(names, name)
	}
	sort.Strings(names)
	return Snapshot{
		Snapshot: c.Toy.Snapshot(),
		Recorded: names,
	}
}
