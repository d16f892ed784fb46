package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds all CLI flags
type AppOptions struct {
	ConfigFile string
	InputFile  string
	StoreURL   string
	OutputFile string
	SouthWest  string
	NorthEast  string
	Eps        float64
	MinSamples int
	HttpPort   int
	Estimate   bool
	MqttMode   bool
	HttpMode   bool
	Verbose    bool
}

// Application is the set of modes the CLI can dispatch to.
type Application interface {
	ApplyOptions(opts AppOptions)
	RunEstimate() error
	RunService()
}

func main() {
	app := NewApp(os.Stdout)
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, app Application) error {
	fs := flag.NewFlagSet("firesight", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.BoolVar(&opts.Estimate, "estimate", false, "Estimate once from --input or --store-url and exit")
	fs.StringVar(&opts.InputFile, "input", "", "JSON file of observation records for --estimate")
	fs.StringVar(&opts.StoreURL, "store-url", "", "Remote observation store URL for --estimate (overrides store.url)")
	fs.StringVar(&opts.OutputFile, "output", "", "Write the result to a .svg, .png, .geojson or .json file")
	fs.StringVar(&opts.SouthWest, "sw", "", "South-west bounds corner as lat,lon (requires --ne)")
	fs.StringVar(&opts.NorthEast, "ne", "", "North-east bounds corner as lat,lon (requires --sw)")
	fs.Float64Var(&opts.Eps, "eps", 0, "DBSCAN neighbourhood radius in degrees (0 = config/default)")
	fs.IntVar(&opts.MinSamples, "min-samples", 0, "DBSCAN minimum samples per core point (0 = config/default)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode: ingest observations and publish estimates")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for estimates and diagnostics")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Log every rejected record, intersection and cluster")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if (opts.SouthWest == "") != (opts.NorthEast == "") {
		return fmt.Errorf("--sw and --ne must be given together")
	}

	_, _ = fmt.Fprintf(out, "firesight version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.Estimate {
		return app.RunEstimate()
	}

	if opts.MqttMode || opts.HttpMode {
		app.RunService()
		return nil
	}

	_, _ = fmt.Fprintln(out, "firesight: no mode selected")
	_, _ = fmt.Fprintln(out, "Use --estimate --input observations.json to estimate once")
	_, _ = fmt.Fprintln(out, "Use --estimate --store-url URL to estimate from a remote store")
	_, _ = fmt.Fprintln(out, "Use --mqtt to ingest observations and publish estimates")
	_, _ = fmt.Fprintln(out, "Use --http to serve estimates over HTTP")
	_, _ = fmt.Fprintln(out, "\nConfiguration:")
	_, _ = fmt.Fprintln(out, "  config.yaml - MQTT, observation topics, estimator parameters and bounds")
	return nil
}
