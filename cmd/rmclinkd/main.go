// Rmclinkd - RMC75E register gateway daemon
//
// Polls register groups from a Delta RMC75E motion controller over
// EtherNet/IP and republishes values via REST, MQTT, Valkey, and Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rmclink/config"
	"rmclink/gateway"
	"rmclink/kafka"
	"rmclink/logging"
	"rmclink/mqtt"
	"rmclink/valkey"
	"rmclink/web"
)

// Version is set at build time via -ldflags
var Version = "dev"

// isFlagSet reports whether a flag was passed on the command line, which
// distinguishes "-debug=" (log everything) from the flag being absent.
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to configuration file")
	debugFilter := flag.String("debug", "", "Enable debug logging to debug.log, comma-separated protocols (eip,rmc,gateway,mqtt,valkey,kafka,web) or empty for all")
	logFile := flag.String("log", "", "Path to log file (optional)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rmclinkd %s\n", Version)
		os.Exit(0)
	}

	if isFlagSet("debug") {
		dbg, err := logging.NewDebugLogger("debug.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening debug log: %v\n", err)
			os.Exit(1)
		}
		dbg.SetFilter(*debugFilter)
		logging.SetGlobalDebugLogger(dbg)
		defer dbg.Close()
	}

	var fileLogger *logging.FileLogger
	if *logFile != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open log file: %v\n", err)
		} else {
			defer fileLogger.Close()
			fileLogger.Log("rmclinkd %s starting", Version)
		}
	}
	logEvent := func(format string, args ...interface{}) {
		if fileLogger != nil {
			fileLogger.Log(format, args...)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	gw := gateway.New(cfg)

	mqttMgr := mqtt.NewManager()
	mqttMgr.LoadFromConfig(cfg.MQTT)

	valkeyMgr := valkey.NewManager()
	valkeyMgr.LoadFromConfig(cfg.Valkey)

	kafkaMgr := kafka.NewManager()
	kafkaMgr.LoadFromConfig(cfg.Kafka)

	// Publishers run in their own goroutines so a slow broker
	// cannot stall the poll loop.
	gw.SetOnValueChange(func(changes []gateway.ValueChange) {
		mqttRunning := mqttMgr.AnyRunning()
		valkeyRunning := valkeyMgr.AnyRunning()
		kafkaConnected := kafkaMgr.AnyConnected()

		if !mqttRunning && !valkeyRunning && !kafkaConnected {
			return
		}

		changesCopy := make([]gateway.ValueChange, len(changes))
		copy(changesCopy, changes)

		writable := func(group string) bool {
			g := cfg.FindGroup(group)
			return g != nil && g.Writable
		}

		if mqttRunning {
			go func() {
				for _, c := range changesCopy {
					mqttMgr.Publish(c.Group, c.Address, c.Type, c.Index, c.Value, writable(c.Group))
				}
			}()
		}
		if valkeyRunning {
			go func() {
				for _, c := range changesCopy {
					valkeyMgr.Publish(c.Group, c.Address, c.Type, c.Index, c.Value, writable(c.Group))
				}
			}()
		}
		if kafkaConnected {
			go func() {
				for _, c := range changesCopy {
					kafkaMgr.PublishChange(context.Background(), c.Group, c.Address, c.Type, c.Index, c.Value, writable(c.Group))
				}
			}()
		}
	})

	mqttMgr.SetWriteHandler(func(group string, index int, value float64) error {
		return gw.Write(group, index, value)
	})

	if err := gw.Start(); err != nil {
		logEvent("failed to connect to %s: %v", cfg.Controller.Address, err)
		fmt.Fprintf(os.Stderr, "Error connecting to controller: %v\n", err)
		os.Exit(1)
	}
	defer gw.Stop()
	logEvent("connected to controller %s", cfg.Controller.Address)

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(&cfg.Web, gw)
		if err := webServer.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to start web server: %v\n", err)
		} else {
			fmt.Printf("Web API listening on %s\n", webServer.Address())
			logEvent("web API listening on %s", webServer.Address())
		}
	}

	go mqttMgr.StartAll()
	go valkeyMgr.StartAll()
	go kafkaMgr.ConnectAll()

	fmt.Printf("rmclinkd %s polling %s every %s\n", Version, cfg.Controller.Address, cfg.PollRate)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	logEvent("shutting down")
	if webServer != nil {
		webServer.Stop()
	}
	mqttMgr.StopAll()
	valkeyMgr.StopAll()
	kafkaMgr.DisconnectAll()
}
