package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/natefinch/lumberjack.v2"

	"traktsweep/config"
	"traktsweep/models"
	"traktsweep/services/auth"
	"traktsweep/services/cleaner"
	"traktsweep/services/trakt"
)

func main() {
	configPath := flag.String("config", "", "path to settings file")
	dryRun := flag.Bool("dry-run", false, "identify duplicates without removing them")
	flag.Parse()

	// .env is optional; plain process env still applies without it
	_ = godotenv.Load()

	path := *configPath
	if path == "" {
		path = os.Getenv("TRAKTSWEEP_CONFIG")
	}
	if path == "" {
		path = "settings.json"
	}

	cfgManager := config.NewManager(path)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	config.ApplyEnvOverrides(&settings)

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if err := settings.Validate(); err != nil {
		fmt.Println("❌ Set your Trakt API credentials in the settings file or the environment (CLIENT_ID, CLIENT_SECRET, TRAKT_USERNAME).")
		log.Fatalf("invalid configuration: %v", err)
	}

	client := trakt.NewClient(settings.Trakt.ClientID, settings.Trakt.ClientSecret)
	store := auth.NewStore(settings.TokenFile)
	tokens := auth.NewManager(client, store)
	svc := cleaner.NewService(client, tokens, settings.Trakt.Username, settings.Trakt.KeepPerDay, *dryRun)

	report := svc.Run()
	printReport(report, *dryRun)

	if report.AllFailed() {
		os.Exit(1)
	}
}

// printReport renders the human-readable run summary.
func printReport(report models.Report, dryRun bool) {
	total := report.TotalRemoved()
	if total == 0 {
		var counts []string
		for _, t := range report.Types {
			if t.Err != nil {
				fmt.Printf("❌ Failed to process %s: %v\n", t.Type, t.Err)
				continue
			}
			counts = append(counts, fmt.Sprintf("%d %s", t.Fetched, t.Type))
		}
		if len(counts) > 0 {
			fmt.Printf("👍 No duplicates in %s.\n", strings.Join(counts, " and "))
		}
		return
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	plural := ""
	if total > 1 {
		plural = "s"
	}
	fmt.Printf("🗑️ %s %d duplicate%s:\n", verb, total, plural)

	title := cases.Title(language.English)
	for _, t := range report.Types {
		if t.Err != nil {
			fmt.Printf("❌ Failed to process %s: %v\n", t.Type, t.Err)
			continue
		}
		if len(t.Removed) == 0 {
			continue
		}
		fmt.Printf("%s:\n", title.String(t.Type))
		for _, name := range uniqueTitles(t.Removed) {
			fmt.Printf("  %s\n", name)
		}
	}
}

// uniqueTitles deduplicates display titles, preserving first-seen order.
func uniqueTitles(removed []models.RemovedEntry) []string {
	seen := make(map[string]struct{}, len(removed))
	var titles []string
	for _, entry := range removed {
		name := entry.Title
		if name == "" {
			name = fmt.Sprintf("entry %d", entry.ID)
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		titles = append(titles, name)
	}
	return titles
}
