package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/iopestimator/internal/app"
	"github.com/chrissnell/iopestimator/internal/batch"
	"github.com/chrissnell/iopestimator/internal/log"
	"github.com/chrissnell/iopestimator/pkg/config"
	"github.com/chrissnell/iopestimator/pkg/estimate"
	"github.com/chrissnell/iopestimator/pkg/responseformat"
	"github.com/joho/godotenv"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

const (
	envConfig     = "IOPESTIMATOR_CONFIG"
	envArchiveDSN = "IOPESTIMATOR_ARCHIVE_DSN"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	cfgFile := flag.String("config", os.Getenv(envConfig), "Path to a YAML configuration file (optional)")
	readings := flag.String("readings", "", "Comma separated readings in mmHg, e.g. \"14.2,15.8,13.0\". Read from stdin when no other input is given")
	batchFile := flag.String("batch", "", "CSV file with one session per row: session_id,r1,r2,...")
	serve := flag.Bool("serve", false, "Run the HTTP estimation server")
	formatName := flag.String("format", "text", "Output format: json, msgpack or text")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("iopestimate %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	if *serve {
		application := app.New(cfgData, log.GetSugaredLogger())
		if err := application.Run(context.Background()); err != nil {
			log.Errorf("Application error: %v", err)
			os.Exit(1)
		}
		return
	}

	format, err := responseformat.ParseFormat(*formatName)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	engine := app.NewEngine(cfgData)
	out := responseformat.NewFormatter()

	var code int
	if *batchFile != "" {
		code = runBatch(engine, out, format, *batchFile)
	} else {
		code = runOnce(engine, out, format, *readings)
	}

	log.Sync()
	os.Exit(code)
}

func loadConfig(cfgFile string) (*config.ConfigData, error) {
	var cfgData *config.ConfigData

	if cfgFile == "" {
		cfgData = config.Default()
	} else {
		filename, _ := filepath.Abs(cfgFile)
		provider := config.NewYAMLProvider(filename)
		defer provider.Close()

		var err error
		cfgData, err = provider.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", filename, err)
		}
	}

	if dsn := os.Getenv(envArchiveDSN); dsn != "" {
		if cfgData.Archive.Driver == "" {
			cfgData.Archive.Driver = "sqlite"
		}
		cfgData.Archive.DSN = dsn
	}

	return cfgData, nil
}

// runOnce estimates a single session and returns the exit code
func runOnce(engine estimate.Engine, out *responseformat.Formatter, format responseformat.Format, input string) int {
	if input == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Errorf("Failed to read readings from stdin: %v", err)
			return 1
		}
		input = string(b)
	}

	readings, err := estimate.ParseReadings(input)
	if err != nil {
		log.Errorf("Invalid readings: %v", err)
		return 1
	}

	report, err := engine.Estimate(readings)
	var verr *estimate.ValidationError
	if errors.As(err, &verr) {
		log.Errorf("Invalid readings: %v", verr)
		return 1
	}
	if err != nil {
		log.Errorf("Estimation failed: %v", err)
		return 1
	}

	for _, w := range report.Warnings {
		log.Warnf("reading %d (%.1f mmHg) is outside the plausible range", w.Index, w.Value)
	}

	if err := out.Encode(os.Stdout, format, report); err != nil {
		log.Errorf("Failed to write report: %v", err)
		return 1
	}
	return 0
}

// runBatch estimates every session in a CSV file. It returns 2 when some
// sessions failed.
func runBatch(engine estimate.Engine, out *responseformat.Formatter, format responseformat.Format, path string) int {
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("Failed to open batch file: %v", err)
		return 1
	}
	defer f.Close()

	sessions, err := batch.ReadSessions(f)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	res, err := batch.NewRunner(engine).Run(context.Background(), sessions)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	if err := out.Encode(os.Stdout, format, res); err != nil {
		log.Errorf("Failed to write results: %v", err)
		return 1
	}

	if res.Failed > 0 {
		log.Warnf("%d of %d sessions failed", res.Failed, len(res.Sessions))
		return 2
	}
	return 0
}
