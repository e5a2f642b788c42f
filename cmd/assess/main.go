// Command assess runs a single fire-risk assessment from the command line
// and prints the observation, risk level and hourly series.
//
// Credentials and endpoints are read from the same environment variables as
// the service (OPENWEATHER_API_KEY, OPENWEATHER_BASE_URL, ...).
//
// Usage:
//
//	go run ./cmd/assess -q "São Paulo"
//	go run ./cmd/assess -q Recife -seed 42 -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/fire-risk-service/internal/adapter/openweather"
	"github.com/couchcryptid/fire-risk-service/internal/config"
	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/couchcryptid/fire-risk-service/internal/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	query := flag.String("q", "", "place to assess")
	seed := flag.Uint64("seed", 0, "seed for the hourly series (0 = random)")
	asJSON := flag.Bool("json", false, "print the full snapshot as JSON")
	flag.Parse()

	if *query == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -q")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger("error", "text")
	metrics := observability.NewUnregisteredMetrics()

	var random domain.RandomSource = domain.DefaultRandom
	if *seed != 0 {
		random = rand.New(rand.NewPCG(*seed, *seed))
	}

	c := session.NewCoordinator("cli", session.Options{
		Weather: openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.OpenWeatherTimeout, metrics, logger),
		Random:  random,
		Logger:  logger,
		Metrics: metrics,
	})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OpenWeatherTimeout)
	defer cancel()

	c.SetQueryText(*query)
	if err := c.SubmitSearch(ctx); err != nil {
		return fmt.Errorf("assess %q: %w", *query, err)
	}

	snap := c.Snapshot()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return render(os.Stdout, snap)
}

// render prints a human-readable report of snap.
func render(w io.Writer, snap session.Snapshot) error {
	if snap.Observation == nil || snap.Assessment == nil {
		return fmt.Errorf("no assessment available")
	}
	obs, a := snap.Observation, snap.Assessment

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Place\t%s\n", obs.PlaceName)
	fmt.Fprintf(tw, "Coordinates\t%.4f, %.4f\n", obs.Coordinates.Lat, obs.Coordinates.Lon)
	fmt.Fprintf(tw, "Temperature\t%.1f °C\n", obs.Temperature)
	fmt.Fprintf(tw, "Humidity\t%.0f %%\n", obs.Humidity)
	fmt.Fprintf(tw, "Wind\t%.1f km/h\n", obs.WindSpeedKmh())
	fmt.Fprintf(tw, "Risk\t%s (score %.1f)\n", a.Level, a.Score)
	fmt.Fprintf(tw, "Advisory\t%s\n", a.Advisory)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Hour\tTemp °C\tHumidity %")
	for _, p := range snap.Hourly {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\n", p.Label, p.Temperature, p.Humidity)
	}
	return tw.Flush()
}
