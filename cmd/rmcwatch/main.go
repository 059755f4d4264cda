// Rmcwatch - live register monitor for the RMC75E
//
// Connects to the controller, polls the configured register groups,
// and displays values in a terminal table.
package main

import (
	"flag"
	"fmt"
	"os"

	"rmclink/config"
	"rmclink/gateway"
	"rmclink/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to configuration file")
	address := flag.String("address", "", "Controller address (overrides config)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rmcwatch %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.Controller.Address = *address
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	gw := gateway.New(cfg)
	if err := gw.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to controller: %v\n", err)
		os.Exit(1)
	}
	defer gw.Stop()

	app := tui.NewApp(gw)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
