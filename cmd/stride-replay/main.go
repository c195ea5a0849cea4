// Command stride-replay feeds a recorded fix log into a running Stride
// server, either as fast as possible or paced by the recorded timestamps.
// Useful for exercising the tracker against real GPS traces.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/claude/stride/internal/location"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Stride server URL")
	apiKey := flag.String("key", "", "API key for the ingest endpoint")
	filePath := flag.String("file", "", "path to a JSON array of fixes")
	realtime := flag.Bool("realtime", false, "pace the replay by recorded timestamp deltas")
	speedup := flag.Float64("speedup", 1.0, "timestamp pacing divisor when -realtime is set")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("stride-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" || *apiKey == "" {
		fmt.Fprintf(os.Stderr, "Usage: stride-replay -server <URL> -key <API key> -file <fixes.json> [-realtime] [-speedup N]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *speedup <= 0 {
		fmt.Fprintf(os.Stderr, "Error: -speedup must be positive\n")
		os.Exit(1)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Error("failed to read fix log", "error", err)
		os.Exit(1)
	}
	var fixes []location.Fix
	if err := json.Unmarshal(data, &fixes); err != nil {
		log.Error("failed to parse fix log", "error", err)
		os.Exit(1)
	}
	if len(fixes) == 0 {
		log.Info("nothing to replay")
		return
	}

	endpoint := strings.TrimRight(*serverURL, "/") + "/api/v1/ingest/location"
	client := &http.Client{Timeout: 10 * time.Second}

	sent := 0
	for i, fix := range fixes {
		if *realtime && i > 0 {
			delta := time.Duration(fix.Timestamp-fixes[i-1].Timestamp) * time.Millisecond
			if delta > 0 {
				time.Sleep(time.Duration(float64(delta) / *speedup))
			}
		}

		if err := postFix(client, endpoint, *apiKey, fix); err != nil {
			log.Error("fix rejected", "index", i, "error", err)
			os.Exit(1)
		}
		sent++
	}

	log.Info("replay complete", "fixes", sent)
}

func postFix(client *http.Client, endpoint, apiKey string, fix location.Fix) error {
	body, err := json.Marshal(fix)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
