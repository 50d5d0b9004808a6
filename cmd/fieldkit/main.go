// fieldkit is the device-side companion for the cleanup bounty system.
// It queues photo reports captured without connectivity and drains them
// to the server once a network is available.
//
//	fieldkit enqueue -photo trash.jpg [-source device-gallery] [-city Lagos]
//	fieldkit drain
//	fieldkit watch [-interval 15s]
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cleanup-bounty-system/client"
	"cleanup-bounty-system/geotag"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	if len(os.Args) < 2 {
		usage()
	}

	serverURL := requireEnv("SYNC_SERVER_URL")
	userID := requireEnv("FIELDKIT_USER_ID")
	token := requireEnv("CLEANUP_SERVICE_TOKEN")

	dbPath := os.Getenv("FIELDKIT_DB")
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, ".fieldkit", "queue.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("❌ Failed to create queue directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := client.Open(ctx, dbPath)
	if err != nil {
		log.Fatalf("❌ Failed to open submission queue: %v", err)
	}
	defer queue.Close()

	submitter := client.NewSubmitter(serverURL, userID, token)

	switch os.Args[1] {
	case "enqueue":
		runEnqueue(ctx, queue, os.Args[2:])
	case "drain":
		if err := queue.Drain(ctx, submitter); err != nil {
			log.Fatalf("❌ Drain failed: %v", err)
		}
	case "watch":
		runWatch(ctx, queue, submitter, serverURL, os.Args[2:])
	default:
		usage()
	}
}

func runEnqueue(ctx context.Context, queue *client.Queue, args []string) {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	photoPath := fs.String("photo", "", "path to the photo file (required)")
	source := fs.String("source", string(geotag.SourceCamera), "capture source: device-camera or device-gallery")
	city := fs.String("city", "", "manual place hint: city")
	region := fs.String("region", "", "manual place hint: region")
	fs.Parse(args)

	if *photoPath == "" {
		log.Fatal("❌ -photo is required")
	}

	data, err := os.ReadFile(*photoPath)
	if err != nil {
		log.Fatalf("❌ Failed to read photo: %v", err)
	}

	capturedAt := time.Now()
	if info, err := os.Stat(*photoPath); err == nil {
		capturedAt = info.ModTime()
	}

	item := client.Item{
		Filename:      filepath.Base(*photoPath),
		Payload:       base64.StdEncoding.EncodeToString(data),
		Role:          string(geotag.RoleReport),
		CaptureSource: *source,
		PlaceCity:     *city,
		PlaceRegion:   *region,
		CapturedAt:    capturedAt,
	}

	// Gallery picks get a device location snapshot now, while we are
	// still where the photo was chosen; the server replays it through
	// the validator on delivery.
	if geotag.CaptureSource(*source) == geotag.SourceGallery {
		if locationURL := os.Getenv("FIELDKIT_LOCATION_URL"); locationURL != "" {
			snapCtx, cancel := context.WithTimeout(ctx, geotag.DefaultSnapshotTimeout)
			coords, err := client.NewLocationService(locationURL).Snapshot(snapCtx, geotag.AccuracyHigh)
			cancel()
			if err != nil {
				log.Printf("⚠️ Location snapshot unavailable, evidence will be unverified: %v", err)
			} else {
				item.SnapshotLat = &coords.Latitude
				item.SnapshotLon = &coords.Longitude
			}
		}
	}

	if err := queue.Enqueue(ctx, item); err != nil {
		log.Fatalf("❌ %v", err)
	}

	n, _ := queue.Len(ctx)
	log.Printf("✅ Queued %s (%d item(s) pending)", item.Filename, n)
}

func runWatch(ctx context.Context, queue *client.Queue, submitter *client.Submitter, serverURL string, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", 15*time.Second, "connectivity probe interval")
	fs.Parse(args)

	watcher := &client.Watcher{
		Queue:    queue,
		Deliver:  submitter,
		Probe:    client.HTTPProbe(serverURL+"/bounties", nil),
		Interval: *interval,
	}

	log.Printf("👀 Watching connectivity every %s, queue at %d item(s)", interval, queueLen(ctx, queue))
	watcher.Run(ctx)
}

func queueLen(ctx context.Context, queue *client.Queue) int {
	n, _ := queue.Len(ctx)
	return n
}

func requireEnv(name string) string {
	v := os.Getenv(name)
	if v == "" {
		log.Fatalf("❌ %s environment variable not set", name)
	}
	return v
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fieldkit <enqueue|drain|watch> [flags]")
	os.Exit(2)
}
