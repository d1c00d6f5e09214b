package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rkjdid/util"

	"github.com/smithj208/BuildBotStatusLight/irtoy"
	"github.com/smithj208/BuildBotStatusLight/lights"
)

type ServerConfig struct {
	ListenAddr        string
	Verbose           bool
	WebsocketInterval util.Duration

	version string
}

var DefaultServerConfig = ServerConfig{
	ListenAddr:        "localhost:3636",
	WebsocketInterval: util.Duration(time.Second),
}

// LightService is the consumer surface the server exposes over HTTP.
type LightService interface {
	SetColour(name string) error
	SendCommand(name string) error
	LightsOn() error
	LightsOff() error
	RecordButton(name string) error
	SaveButtons() error
	Recorded() []string
	GetVersion() (irtoy.Version, error)
	GetSettings() (irtoy.Settings, error)
	Snapshot() lights.Snapshot
}

type Server struct {
	Config *ServerConfig
	Lights LightService

	router     *mux.Router
	wsUpgrader *websocket.Upgrader
}

// NewServer builds a Server and registers its routes.
func NewServer(version string, svc LightService, cfg *ServerConfig) *Server {
	if cfg == nil {
		cfg = &DefaultServerConfig
	}
	cfg.version = version
	srv := &Server{
		Config: cfg,
		Lights: svc,
	}
	srv.wsUpgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	verbose := cfg.Verbose
	srv.router = mux.NewRouter()

	// shh
	srv.router.Handle("/favicon.ico", http.HandlerFunc(NilHandler))

	// register endpoints
	srv.router.Handle("/websocket",
		Logger(http.HandlerFunc(srv.Websocket), "ws-snapshot", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/snapshot",
		Logger(http.HandlerFunc(srv.Snapshot), "snapshot", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/buttons",
		Logger(http.HandlerFunc(srv.Buttons), "buttons", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/version",
		Logger(http.HandlerFunc(srv.Version), "version", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/settings",
		Logger(http.HandlerFunc(srv.Settings), "settings", verbose)).
		Methods("GET", "HEAD")
	srv.router.Handle("/colour/{name}",
		Logger(http.HandlerFunc(srv.SetColour), "colour", verbose)).
		Methods("POST")
	srv.router.Handle("/command/{name}",
		Logger(http.HandlerFunc(srv.SendCommand), "command", verbose)).
		Methods("POST")
	srv.router.Handle("/on",
		Logger(http.HandlerFunc(srv.LightsOn), "on", verbose)).
		Methods("POST")
	srv.router.Handle("/off",
		Logger(http.HandlerFunc(srv.LightsOff), "off", verbose)).
		Methods("POST")
	srv.router.Handle("/record/{name}",
		Logger(http.HandlerFunc(srv.Record), "record", verbose)).
		Methods("POST")

	return srv
}

// Start blocks on http.ListenAndServe. It either doesn't return or panics.
func (s *Server) Start() {
	httpServer := &http.Server{
		Handler:      s.router,
		Addr:         s.Config.ListenAddr,
		WriteTimeout: 4 * time.Second,
		ReadTimeout:  4 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal("http.ListenAndServe:", err)
	}
}

// transmitError maps command mapper errors to http status codes.
func transmitError(w http.ResponseWriter, err error) {
	switch err {
	case nil:
		w.Write([]byte("ok"))
	case lights.ErrNotRecorded:
		http.Error(w, err.Error(), http.StatusNotFound)
	case lights.ErrUnknownButton:
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// SetColour transmits a colour change. Unrecognized colour names are
// rejected here: the mapper's silent no-op would read as success.
func (s *Server) SetColour(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !lights.IsColour(name) {
		http.Error(w, fmt.Sprintf("unrecognized colour \"%s\"", name), http.StatusUnprocessableEntity)
		return
	}
	transmitError(w, s.Lights.SetColour(name))
}

func (s *Server) SendCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !lights.IsCommand(name) {
		http.Error(w, fmt.Sprintf("unrecognized command \"%s\"", name), http.StatusUnprocessableEntity)
		return
	}
	transmitError(w, s.Lights.SendCommand(name))
}

func (s *Server) LightsOn(w http.ResponseWriter, r *http.Request) {
	transmitError(w, s.Lights.LightsOn())
}

func (s *Server) LightsOff(w http.ResponseWriter, r *http.Request) {
	transmitError(w, s.Lights.LightsOff())
}

// Record captures one button press then persists the button map. The
// device blocks until the remote is actually pressed, so the client
// request hangs for as long as the human does nothing.
func (s *Server) Record(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.Lights.RecordButton(name); err != nil {
		transmitError(w, err)
		return
	}
	if err := s.Lights.SaveButtons(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte("recorded " + name))
}

// Snapshot encodes the current light snapshot as json to w.
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.Lights.Snapshot())
}

// Buttons lists the recorded button names.
func (s *Server) Buttons(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.Lights.Recorded())
}

func (s *Server) Version(w http.ResponseWriter, r *http.Request) {
	v, err := s.Lights.GetVersion()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Server string
		Device irtoy.Version
	}{s.Config.version, v})
}

func (s *Server) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Lights.GetSettings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	_ = json.NewEncoder(w).Encode(settings)
}

// Websocket pushes snapshots to the subscriber on a fixed interval.
func (s *Server) Websocket(w http.ResponseWriter, r *http.Request) {
	var interval = time.Duration(s.Config.WebsocketInterval)
	if v, ok := r.URL.Query()["poll"]; ok {
		if d, err := time.ParseDuration(v[0]); err == nil {
			interval = d
		}
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("error subscribing to websocket:", err)
		http.Error(w, "error subscribing to websocket", 500)
		return
	}

	if s.Config.Verbose {
		log.Printf("websocket - subscription from %s (pollrate: %s)", conn.RemoteAddr(), interval)
	}

	go func(conn *websocket.Conn, s *Server) {
		var err error
		for {
			err = conn.WriteJSON(s.Lights.Snapshot())
			if err != nil {
				if s.Config.Verbose {
					log.Printf("websocket - lost connection to %s", conn.RemoteAddr())
				}
				conn.Close()
				return
			}
			<-time.After(interval)
		}
	}(conn, s)
}
