// Package buildbot polls a buildbot master and drives the status light
// from the builder's state.
package buildbot

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rkjdid/util"
)

// Lights is the slice of the light controller the watcher consumes.
type Lights interface {
	SetColour(name string) error
	LightsOn() error
	LightsOff() error
}

// StateColours maps builder outcomes to the colour names to transmit.
type StateColours struct {
	Good      string
	Fail      string
	Busy      string
	Exception string
}

type Config struct {
	BuilderURL string // buildbot master base URL
	Builder    string // builder (slave) name
	PollRate   util.Duration
	Colours    StateColours
}

var DefaultConfig = Config{
	PollRate: util.Duration(time.Minute),
	Colours: StateColours{
		Good:      "green",
		Fail:      "red",
		Busy:      "orange",
		Exception: "purple",
	},
}

// Watcher polls the builder status on a fixed interval and transmits a
// colour change whenever the mapped colour differs from the last one sent.
type Watcher struct {
	lights Lights
	cfg    *Config
	client *http.Client

	stopCh     chan struct{}
	wg         sync.WaitGroup
	lastColour string
}

func NewWatcher(lights Lights, cfg *Config) *Watcher {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	return &Watcher{
		lights: lights,
		cfg:    cfg,
		client: &http.Client{Timeout: time.Second * 30},
	}
}

// Stop notifies Watch() to stop, and waits until it returns.
func (w *Watcher) Stop() {
	if w.stopCh == nil {
		return
	}
	log.Println("stopping buildbot watcher")
	close(w.stopCh)
	w.wg.Wait()
}

// Watch starts the poll loop. To stop it, call Stop().
func (w *Watcher) Watch() {
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer func() {
			w.stopCh = nil
			w.wg.Done()
		}()
		for {
			select {
			case <-time.After(time.Duration(w.cfg.PollRate)):
			case <-w.stopCh:
				return
			}

			colour, err := w.poll()
			if err != nil {
				log.Println("polling buildbot:", err)
				continue
			}
			if colour == "" || colour == w.lastColour {
				continue
			}
			log.Printf("builder \"%s\": switching light to %s", w.cfg.Builder, colour)
			if err := w.lights.SetColour(colour); err != nil {
				log.Printf("setting colour %s: %s", colour, err)
				continue
			}
			w.lastColour = colour
		}
	}()
}

func (w *Watcher) builderURL() string {
	return fmt.Sprintf("%s/json/builders/%s", w.cfg.BuilderURL, url.PathEscape(w.cfg.Builder))
}

// poll fetches the builder state and maps it to a colour name. An
// empty colour means no change should be transmitted.
func (w *Watcher) poll() (string, error) {
	var status struct {
		State string `json:"state"`
	}
	if err := w.getJSON(w.builderURL(), &status); err != nil {
		return "", err
	}
	switch status.State {
	case "building":
		return w.cfg.Colours.Busy, nil
	case "idle":
		return w.lastBuild()
	}
	return "", nil
}

// lastBuild fetches the most recent finished build and maps its
// results code: 0 good, 5 exception, anything else a failure.
func (w *Watcher) lastBuild() (string, error) {
	var builds map[string]struct {
		Results int `json:"results"`
	}
	if err := w.getJSON(w.builderURL()+"/builds?select=-1", &builds); err != nil {
		return "", err
	}
	last, ok := builds["-1"]
	if !ok {
		return "", fmt.Errorf("builder \"%s\": no last build in answer", w.cfg.Builder)
	}
	switch last.Results {
	case 0:
		return w.cfg.Colours.Good, nil
	case 5:
		return w.cfg.Colours.Exception, nil
	}
	return w.cfg.Colours.Fail, nil
}

func (w *Watcher) getJSON(url string, v interface{}) error {
	resp, err := w.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
