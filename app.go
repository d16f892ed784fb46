package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/kwv/firesight/locator"
)

const defaultConfigFile = "config.yaml"

// App encapsulates the application state and dependencies
type App struct {
	Config     *locator.Config
	Estimator  *locator.Estimator
	Store      *locator.ObservationStore
	MQTTClient *locator.MQTTClient
	Publisher  *locator.Publisher
	Out        io.Writer

	opts AppOptions

	// serializes recompute so published runs follow store order
	recomputeMu sync.Mutex

	// MQTT messages whose payload could not be decoded
	droppedMessages atomic.Int64
}

// NewApp creates a new App instance writing reports to out.
func NewApp(out io.Writer) *App {
	return &App{Out: out}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file and applies CLI overrides. A missing
// default config file is not an error.
func (a *App) loadConfig() error {
	path := a.opts.ConfigFile
	if path == "" {
		path = defaultConfigFile
	}

	config, err := locator.LoadConfig(path)
	switch {
	case err == nil:
		log.Printf("Loaded config from %s", path)
	case path == defaultConfigFile && isNotExist(path):
		config = locator.DefaultConfig()
	default:
		return fmt.Errorf("loading config: %w", err)
	}

	if a.opts.Eps != 0 {
		config.Estimator.Eps = a.opts.Eps
	}
	if a.opts.MinSamples != 0 {
		config.Estimator.MinSamples = a.opts.MinSamples
	}
	if a.opts.SouthWest != "" {
		bounds, err := locator.ParseBounds(a.opts.SouthWest, a.opts.NorthEast)
		if err != nil {
			return fmt.Errorf("parsing bounds: %w", err)
		}
		config.Bounds = bounds
	}
	if a.opts.StoreURL != "" {
		config.Store.URL = a.opts.StoreURL
	}
	if err := config.Validate(); err != nil {
		return err
	}

	a.Config = config
	a.Estimator = locator.NewEstimator(config.Estimator, a.tracer())
	return nil
}

func isNotExist(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

func (a *App) tracer() locator.Tracer {
	if a.opts.Verbose {
		return locator.NewLogTracer(log.Default())
	}
	return locator.NopTracer{}
}

// RunEstimate estimates once from a file or remote store and reports the
// result.
func (a *App) RunEstimate() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	records, err := a.loadRecords()
	if err != nil {
		return err
	}

	result := a.Estimator.EstimateRecords(records, a.Config.Bounds)
	a.printResult(result)

	if a.opts.OutputFile != "" {
		if err := writeResult(result, a.opts.OutputFile); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.Out, "Wrote %s\n", a.opts.OutputFile)
	}
	return nil
}

func (a *App) loadRecords() ([]locator.RawRecord, error) {
	switch {
	case a.opts.InputFile != "":
		return locator.ParseRecordsFile(a.opts.InputFile)
	case a.Config.Store.URL != "":
		return locator.NewStoreClient(a.Config.Store).Fetch(context.Background(), a.Config.Bounds)
	default:
		return nil, fmt.Errorf("--estimate needs --input or a store URL")
	}
}

func (a *App) printResult(result locator.Result) {
	out := a.Out
	_, _ = fmt.Fprintf(out, "Observations: %d accepted, %d rejected\n", len(result.Observations), len(result.Rejected))
	for _, r := range result.Rejected {
		_, _ = fmt.Fprintf(out, "  rejected #%d %s: %s\n", r.Index, r.ID, r.Reason())
	}
	_, _ = fmt.Fprintf(out, "Intersections: %d\n", len(result.Intersections))
	_, _ = fmt.Fprintf(out, "Clusters: %d\n", len(result.Clusters))
	if result.Estimate == nil {
		_, _ = fmt.Fprintf(out, "Estimate: insufficient data (%s)\n", result.Outcome)
		return
	}
	_, _ = fmt.Fprintf(out, "Estimate: %.6f, %.6f\n", result.Estimate.Lat, result.Estimate.Lon)
	_, _ = fmt.Fprintf(out, "Contributors: %v (cluster %d, score %.6f)\n",
		result.Selection.Contributors, result.Selection.Cluster.Label, result.Selection.Cluster.Score)
}

// writeResult writes the result in the format implied by the file extension.
func writeResult(result locator.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		err = locator.NewVectorRenderer(result).RenderToSVG(f)
	case ".png":
		err = locator.NewRasterRenderer(result).WritePNG(f)
	case ".geojson":
		err = json.NewEncoder(f).Encode(locator.ResultToFeatureCollection(result))
	case ".json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	default:
		err = fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
	}

	if err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// recompute re-runs the estimator over the stored observations, records the
// run and publishes it when MQTT is active.
func (a *App) recompute() locator.EstimateRun {
	a.recomputeMu.Lock()
	defer a.recomputeMu.Unlock()

	if n := a.Store.Prune(); n > 0 {
		log.Printf("Pruned %d expired observation(s)", n)
	}

	result := a.Estimator.EstimateRecords(a.Store.Records(), a.Config.Bounds)
	run := a.Store.SetLatest(result)

	if result.Estimate != nil {
		log.Printf("Estimate %s: %.6f, %.6f from %d observer(s)",
			run.RunID, result.Estimate.Lat, result.Estimate.Lon, len(result.Selection.Contributors))
	} else {
		log.Printf("Estimate %s: insufficient data (%s, %d observation(s))",
			run.RunID, result.Outcome, len(result.Observations))
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishEstimate(run); err != nil {
			log.Printf("Error publishing estimate: %v", err)
		}
	}
	return run
}

// ingest stores records and recomputes the estimate.
func (a *App) ingest(records []locator.RawRecord) locator.EstimateRun {
	a.Store.Add(records)
	return a.recompute()
}

// handleMQTTRecords ingests the records of one MQTT message. Messages that
// failed to decode are logged and counted in /health.
func (a *App) handleMQTTRecords(topic string, records []locator.RawRecord, err error) {
	if err != nil {
		n := a.droppedMessages.Add(1)
		log.Printf("[MQTT] Dropped message on %s (%d dropped so far): %v", topic, n, err)
		return
	}
	log.Printf("[MQTT] %d record(s) on %s", len(records), topic)
	a.ingest(records)
}

// RunService runs the MQTT and/or HTTP service until interrupted.
func (a *App) RunService() {
	fmt.Fprintln(a.Out, "Starting firesight service...")

	if err := a.loadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config := a.Config
	a.Store = locator.NewObservationStoreWithCache(config.Observations.MaxAge, config.Observations.CachePath)
	if n := a.Store.Len(); n > 0 {
		log.Printf("Loaded %d cached observation(s) from %s", n, config.Observations.CachePath)
	}

	if a.opts.MqttMode {
		mqttClient, err := locator.InitMQTT(config, a.handleMQTTRecords)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = mqttClient
		a.Publisher = locator.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		fmt.Fprintln(a.Out, "MQTT estimate publisher initialized")
	}

	if a.Store.Len() > 0 {
		a.recompute()
	}

	if a.opts.HttpMode {
		httpServer := newHTTPServer(a)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.opts.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.opts.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintln(a.Out, "  Subscribed topics:")
		for _, topic := range config.Observations.Topics {
			fmt.Fprintf(a.Out, "    - %s\n", topic)
		}
		fmt.Fprintf(a.Out, "  Publishing to: %s\n", a.Publisher.Topic())
	}

	if a.opts.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.opts.HttpPort)
		fmt.Fprintln(a.Out, "  GET  /health           - Health check")
		fmt.Fprintln(a.Out, "  GET  /estimate         - Latest estimate as JSON (?sw=lat,lon&ne=lat,lon)")
		fmt.Fprintln(a.Out, "  GET  /estimate.geojson - Observers, rays, intersections and estimate")
		fmt.Fprintln(a.Out, "  GET  /estimate.svg     - Diagnostic plot")
		fmt.Fprintln(a.Out, "  GET  /estimate.png     - Diagnostic plot (raster)")
		fmt.Fprintln(a.Out, "  GET  /observations     - Stored sightings in view (?sw=lat,lon&ne=lat,lon)")
		fmt.Fprintln(a.Out, "  GET  /observations/near - Sightings near ?lat=&lon=")
		fmt.Fprintln(a.Out, "  POST /observations     - Submit observation records")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.Out, "Service stopped")
}
