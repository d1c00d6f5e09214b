package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rkjdid/util"

	"github.com/smithj208/BuildBotStatusLight/buildbot"
	"github.com/smithj208/BuildBotStatusLight/irtoy"
	"github.com/smithj208/BuildBotStatusLight/lights"
	"github.com/smithj208/BuildBotStatusLight/web"
)

var (
	conn       *irtoy.SerialConnection
	rootConfig *web.Config
)

var (
	device    = flag.String("dev", "", "path to serial port, if empty it will be searched automatically")
	rootPath  = flag.String("root", "", "path to the main directory (defaults to executable path)")
	cfgPath   = flag.String("config", "", "path to config (defaults to <root>/config.toml)")
	recordAll = flag.Bool("record", false, "record every remote button, save the map & exit")
	recordOne = flag.String("record-button", "", "record a single remote button, save the map & exit")
	verbose   = flag.Bool("v", false, "higher verbosity")
	version   = flag.Bool("version", false, "print version & exit")
)

func init() {
	flag.Parse()

	// print version & exit
	if *version {
		fmt.Printf("buildbotstatuslight %s\n", Version)
		os.Exit(0)
	}

	if *rootPath == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Fatalf("couldn't get path to executable: %s", err)
		}
		*rootPath = filepath.Dir(exe)
	}
	if err := os.MkdirAll(*rootPath, 0755); err != nil {
		log.Fatalf("couldn't mkdir \"%s\": %s", *rootPath, err)
	}

	if *cfgPath == "" {
		*cfgPath = filepath.Join(*rootPath, "config.toml")
	}

	err := util.ReadTomlFile(&rootConfig, *cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("error reading config \"%s\": %s", *cfgPath, err)
		}
		rootConfig = &web.DefaultConfig
		err = util.WriteTomlFile(rootConfig, *cfgPath)
		if err != nil {
			log.Fatalf("error creating config \"%s\": %s", *cfgPath, err)
		}
		log.Printf("created new config file \"%s\"", *cfgPath)
	}

	if *verbose {
		rootConfig.Web.Verbose = true
	}
	if *device == "" {
		*device = rootConfig.Device
	}

	if *device != "" {
		conn, err = irtoy.OpenPort(*device, &rootConfig.Serial)
	} else {
		conn, err = irtoy.FindSerial(&rootConfig.Serial)
	}
	if err != nil {
		log.Fatal("error opening serial port: ", err)
	}

	log.Printf("using config file: %s", *cfgPath)
}

func main() {
	toy, err := irtoy.NewIRToy(conn)
	if err != nil {
		log.Fatalf("no ir toy on port \"%s\": %s", conn.Path(), err)
	}
	log.Printf("connected to \"%s\" (protocol %s)", conn.Path(), toy.ProtocolVersion())

	buttonsFile := rootConfig.ButtonsFile
	if !filepath.IsAbs(buttonsFile) {
		buttonsFile = filepath.Join(*rootPath, buttonsFile)
	}
	controller, err := lights.NewController(toy, buttonsFile)
	if err != nil {
		log.Fatalf("error loading buttons \"%s\": %s", buttonsFile, err)
	}

	// interactive recording session & exit
	if *recordAll || *recordOne != "" {
		if *recordAll {
			err = controller.RecordAllButtons()
		} else {
			if err = controller.RecordButton(*recordOne); err == nil {
				err = controller.SaveButtons()
			}
		}
		if err != nil {
			log.Fatal("recording failed: ", err)
		}
		log.Printf("buttons saved to \"%s\"", buttonsFile)
		toy.Close()
		return
	}

	if err := controller.LightsOn(); err != nil {
		log.Println("turning lights on:", err)
	}
	if err := controller.SetColour("white"); err != nil {
		log.Println("setting idle colour:", err)
	}

	log.Printf("starting buildbot watcher (poll rate: %s)", rootConfig.BuildBot.PollRate)
	watcher := buildbot.NewWatcher(controller, &rootConfig.BuildBot)
	watcher.Watch()

	log.Printf("starting webserver on http://%s ...", rootConfig.Web.ListenAddr)
	srv := web.NewServer(Version, controller, &rootConfig.Web)
	go srv.Start()

	// small delay to allow for panic in Start
	<-time.After(time.Millisecond * 500)
	log.Println("Press <Ctrl-C> to quit")

	trap := make(chan os.Signal, 1)
	signal.Notify(trap, os.Interrupt)
	<-trap
	fmt.Println()
	log.Println("quit received...")

	cleanExit := make(chan struct{})
	go func() {
		watcher.Stop()
		if err := controller.LightsOff(); err != nil {
			log.Println("turning lights off:", err)
		}
		if err := toy.Close(); err != nil {
			log.Println("closing serial port:", err)
		}
		close(cleanExit)
	}()
	select {
	case <-time.After(time.Second * 10):
		log.Panicln("no clean exit after 10sec")
	case <-cleanExit:
	}
}
