package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/darkroomapp/darkroom/internal/client/app"
	"github.com/darkroomapp/darkroom/internal/client/config"
	"github.com/darkroomapp/darkroom/internal/flagx"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: darkroom-client [flags] <command>

commands:
  capture -e <event-id> -f <image-file>   process and enqueue a photo
  process                                 drain the upload queue
  retry                                   reset failed uploads and drain
  status                                  show queue state
  reveal -e <event-id>                    page through an event's photos
  leave                                   drop the disk cache for the event`)
}

func main() {
	cfg := config.LoadConfig()
	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// The command comes first; flags (including the config stages' own
	// flags) follow it and are parsed per stage via flagx.FilterArgs.
	if len(os.Args) < 2 || os.Args[1][0] == '-' {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "capture":
		cmdArgs := flagx.FilterArgs(os.Args[1:], []string{"-e", "-f"})
		fs := flag.NewFlagSet("capture", flag.ExitOnError)
		eventID := fs.String("e", "", "event id")
		file := fs.String("f", "", "image file")
		_ = fs.Parse(cmdArgs)
		if *eventID == "" || *file == "" {
			usage()
			os.Exit(2)
		}
		rec, err := a.Capture(*file, *eventID)
		if err != nil {
			log.Fatalf("capture: %v", err)
		}
		fmt.Printf("queued %s\n", rec.ID)
		a.WaitSettled(ctx)

	case "process":
		a.Drain(ctx)

	case "retry":
		n, err := a.RetryFailed(ctx)
		if err != nil {
			log.Fatalf("retry: %v", err)
		}
		fmt.Printf("reset %d uploads\n", n)
		a.WaitSettled(ctx)

	case "status":
		records, exhausted := a.Status()
		for _, rec := range records {
			fmt.Printf("%s  %-9s  retries=%d  %s\n", rec.ID, rec.Status, rec.RetryCount, rec.ErrorMessage)
		}
		fmt.Printf("%d records, %d waiting on manual retry\n", len(records), exhausted)

	case "reveal":
		cmdArgs := flagx.FilterArgs(os.Args[1:], []string{"-e"})
		fs := flag.NewFlagSet("reveal", flag.ExitOnError)
		eventID := fs.String("e", "", "event id")
		_ = fs.Parse(cmdArgs)
		if *eventID == "" {
			usage()
			os.Exit(2)
		}
		items, err := a.Reveal(ctx, *eventID)
		if err != nil {
			log.Fatalf("reveal: %v", err)
		}
		for _, item := range items {
			fmt.Printf("%s  %s  %s\n", item.CapturedAt.Format("15:04:05"), item.OwnerLabel, item.PhotoID)
		}

	case "leave":
		if err := a.LeaveEvent(); err != nil {
			log.Fatalf("leave: %v", err)
		}

	default:
		usage()
		os.Exit(2)
	}
}
