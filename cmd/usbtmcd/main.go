package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/gousb"

	"github.com/nasa-jpl/usbtmcd/config"
	"github.com/nasa-jpl/usbtmcd/instrumentsrv"
	"github.com/nasa-jpl/usbtmcd/usbtmc"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build.
	Version = "dev"

	// ConfigFileName is what it sounds like.
	ConfigFileName = "usbtmcd.yml"
)

func root() {
	str := `usbtmcd attaches USB Test and Measurement Class instruments and
exposes each one over HTTP: write/read, attribute get/set, abort,
clear, and capabilities, plus a shared enumeration endpoint listing
every attached instrument.

Usage:
	usbtmcd <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `usbtmcd is configured via a YAML file named usbtmcd.yml in the working
directory. For a primer on YAML, see https://yaml.org/start.html

When no configuration is found, defaults are used: an empty instrument
list and a listen address of :8080. Keys are not case-sensitive.

The mkconf command writes the default configuration to usbtmcd.yml.
There is no need to run it unless you want to start from the
prepopulated defaults when hand-editing a config file.`
	fmt.Println(str)
}

func mkconf() {
	if err := config.WriteDefault(ConfigFileName); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	loader, err := config.NewLoader(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	c, err := loader.Config()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%+v\n", c)
}

func pversion() {
	fmt.Printf("usbtmcd version %v\n", Version)
}

func run() {
	loader, err := config.NewLoader(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	c, err := loader.Config()
	if err != nil {
		log.Fatal(err)
	}
	usbtmc.SetDebug(c.Debug)

	ctx := gousb.NewContext()
	defer ctx.Close()

	sessions := attachAll(ctx, c.Instruments, c.DefaultTimeoutMs)
	defer func() {
		for _, sess := range sessions {
			sess.Close()
		}
	}()

	mux := instrumentsrv.NewMux(sessions)
	log.Println("usbtmcd: now listening for requests at", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
