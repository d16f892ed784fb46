package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/firesight/locator"
)

// maxObservationBody caps POST /observations payloads.
const maxObservationBody = 1 << 20

// nearTolerance is how close, in degrees on each axis, a sighting must be to
// the queried point for /observations/near.
const nearTolerance = 1e-4

// sightingView is a stored record as served over HTTP, with its receive
// time in UTC at second precision.
type sightingView struct {
	Key        string            `json:"key"`
	Record     locator.RawRecord `json:"record"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

type sightingsResponse struct {
	Count     int            `json:"count"`
	Sightings []sightingView `json:"sightings"`
}

func newSightingsResponse(stored []locator.StoredRecord) sightingsResponse {
	views := make([]sightingView, 0, len(stored))
	for _, sr := range stored {
		views = append(views, sightingView{
			Key:        sr.Key,
			Record:     sr.Record,
			ReceivedAt: sr.ReceivedAt.UTC().Truncate(time.Second),
		})
	}
	return sightingsResponse{Count: len(views), Sightings: views}
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(a *App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, hasEstimate := a.Store.Latest()
		writeJSON(w, http.StatusOK, struct {
			Status          string    `json:"status"`
			Timestamp       time.Time `json:"timestamp"`
			Observations    int       `json:"observations"`
			HasEstimate     bool      `json:"hasEstimate"`
			MQTT            bool      `json:"mqtt"`
			DroppedMessages int64     `json:"droppedMessages"`
		}{
			Status:          "ok",
			Timestamp:       time.Now(),
			Observations:    a.Store.Len(),
			HasEstimate:     hasEstimate,
			MQTT:            a.MQTTClient != nil && a.MQTTClient.IsConnected(),
			DroppedMessages: a.droppedMessages.Load(),
		})
	})

	mux.HandleFunc("/estimate", func(w http.ResponseWriter, r *http.Request) {
		run, ok := a.runForRequest(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	mux.HandleFunc("/estimate.geojson", func(w http.ResponseWriter, r *http.Request) {
		run, ok := a.runForRequest(w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(locator.ResultToFeatureCollection(run.Result)); err != nil {
			log.Printf("[HTTP] Error encoding GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("/estimate.svg", func(w http.ResponseWriter, r *http.Request) {
		run, ok := a.runForRequest(w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := locator.NewVectorRenderer(run.Result).RenderToSVG(w); err != nil {
			log.Printf("[HTTP] Error rendering SVG: %v", err)
		}
	})

	mux.HandleFunc("/estimate.png", func(w http.ResponseWriter, r *http.Request) {
		run, ok := a.runForRequest(w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")

		var err error
		if r.URL.Query().Get("renderer") == "vector" {
			err = locator.NewVectorRenderer(run.Result).RenderToPNG(w)
		} else {
			err = locator.NewRasterRenderer(run.Result).WritePNG(w)
		}
		if err != nil {
			log.Printf("[HTTP] Error rendering PNG: %v", err)
		}
	})

	mux.HandleFunc("/observations/near", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil {
			http.Error(w, "lat and lon must be numbers", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, newSightingsResponse(a.Store.Near(locator.LatLon{Lat: lat, Lon: lon}, nearTolerance)))
	})

	mux.HandleFunc("/observations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			bounds, err := boundsFromQuery(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, http.StatusOK, newSightingsResponse(a.Store.Sightings(bounds)))
			return
		case http.MethodPost:
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxObservationBody))
		if err != nil {
			http.Error(w, fmt.Sprintf("reading body: %v", err), http.StatusBadRequest)
			return
		}
		records, err := locator.DecodeRecords(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("[HTTP] /observations: %d record(s) from %s", len(records), r.RemoteAddr)
		run := a.ingest(records)
		writeJSON(w, http.StatusAccepted, struct {
			Accepted int                 `json:"accepted"`
			Run      locator.EstimateRun `json:"run"`
		}{
			Accepted: len(records),
			Run:      run,
		})
	})

	return mux
}

// runForRequest returns the run to serve. Requests carrying sw/ne bounds get
// a fresh estimate over the stored observations, leaving the latest run
// untouched; otherwise the latest run is served, computing one if needed.
func (a *App) runForRequest(w http.ResponseWriter, r *http.Request) (locator.EstimateRun, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return locator.EstimateRun{}, false
	}

	bounds, err := boundsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return locator.EstimateRun{}, false
	}
	if bounds != nil {
		result := a.Estimator.EstimateRecords(a.Store.Records(), bounds)
		return locator.EstimateRun{ComputedAt: time.Now(), Result: result}, true
	}

	if run, ok := a.Store.Latest(); ok {
		return run, true
	}
	return a.recompute(), true
}

// boundsFromQuery parses the optional sw/ne query parameters. Both or
// neither must be present.
func boundsFromQuery(r *http.Request) (*locator.Bounds, error) {
	q := r.URL.Query()
	sw, ne := q.Get("sw"), q.Get("ne")
	if sw == "" && ne == "" {
		return nil, nil
	}
	if sw == "" || ne == "" {
		return nil, errors.New("sw and ne must be given together")
	}
	return locator.ParseBounds(sw, ne)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
