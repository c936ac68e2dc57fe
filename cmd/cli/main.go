package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rudrakapoor/EchoMark/pkg/echomark"
	"github.com/rudrakapoor/EchoMark/pkg/echomark/audio"
	"github.com/rudrakapoor/EchoMark/pkg/echomark/fingerprint"
	"github.com/rudrakapoor/EchoMark/pkg/echomark/storage"
	"github.com/rudrakapoor/EchoMark/pkg/logger"
	"github.com/rudrakapoor/EchoMark/pkg/models"
)

var log = logger.GetLogger()

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "fingerprint":
		err = handleFingerprint(args)
	case "index":
		err = handleIndex(args)
	case "list":
		err = handleList(args)
	case "delete":
		err = handleDelete(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `echomark - audio fingerprinting toolkit

Usage:
  echomark fingerprint <file.wav> [-out <file.fp>]   fingerprint one file
  echomark index <dir> [-db <path>] [-workers N]     index all .wav files into the store
  echomark list [-db <path>]                         list stored tracks
  echomark delete <track-id> [-db <path>]            delete a track and its fingerprints
`)
}

func handleFingerprint(args []string) error {
	fl := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	outPath := fl.String("out", "", "write serialized fingerprints to this file")
	fl.Parse(args)

	if fl.NArg() < 1 {
		return fmt.Errorf("missing input file")
	}
	path := fl.Arg(0)

	engine, err := echomark.New()
	if err != nil {
		return err
	}

	buf, err := audio.ReadWAVFile(path)
	if err != nil {
		return err
	}

	fps, err := engine.GenerateFingerprint(buf.Samples, buf.SampleRate, buf.Channels)
	if err != nil {
		return err
	}

	log.Infof("%s: %.2fs, %d fingerprints", filepath.Base(path), buf.DurationSeconds(), len(fps))
	fmt.Print(fingerprint.Statistics(fps))

	if *outPath != "" {
		if err := os.WriteFile(*outPath, echomark.Serialize(fps), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", *outPath, err)
		}
		log.Infof("wrote %s", *outPath)
	}
	return nil
}

func handleIndex(args []string) error {
	fl := flag.NewFlagSet("index", flag.ExitOnError)
	dbPath := fl.String("db", storage.DefaultDBFile, "sqlite database path")
	workers := fl.Int("workers", runtime.NumCPU(), "parallel fingerprinting workers")
	fl.Parse(args)

	if fl.NArg() < 1 {
		return fmt.Errorf("missing directory")
	}
	root := fl.Arg(0)

	paths, err := collectWAVFiles(root)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .wav files under %s", root)
	}

	db, err := storage.NewDBClientWithPath(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	w := *workers
	if w < 1 {
		w = 1
	}

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(paths)),
		mpb.PrependDecorators(
			decor.Name("Indexing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	type indexed struct {
		path       string
		durationMs int
		fps        []models.Fingerprint
		err        error
	}

	jobs := make(chan string, len(paths))
	results := make(chan indexed, len(paths))

	// one engine per worker: engines serialize on their own transform
	// scratch, so independent tracks parallelize cleanly across engines
	var wg sync.WaitGroup
	for i := 0; i < w; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine, err := echomark.New()
			if err != nil {
				for path := range jobs {
					results <- indexed{path: path, err: err}
				}
				return
			}
			for path := range jobs {
				buf, err := audio.ReadWAVFile(path)
				if err != nil {
					results <- indexed{path: path, err: err}
					continue
				}
				fps, err := engine.GenerateFingerprint(buf.Samples, buf.SampleRate, buf.Channels)
				if err != nil {
					results <- indexed{path: path, err: err}
					continue
				}
				results <- indexed{path: path, durationMs: buf.DurationMs(), fps: fps}
			}
		}()
	}

	for _, path := range paths {
		jobs <- path
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	indexedCount := 0
	for r := range results {
		bar.Increment()
		if r.err != nil {
			log.Warnf("skipping %s: %v", r.path, r.err)
			continue
		}
		trackID, err := db.RegisterTrack(filepath.Base(r.path), r.durationMs)
		if err != nil {
			log.Warnf("registering %s: %v", r.path, err)
			continue
		}
		if err := db.StoreFingerprints(trackID, r.fps); err != nil {
			log.Warnf("storing %s: %v", r.path, err)
			continue
		}
		indexedCount++
	}
	p.Wait()

	log.Infof("indexed %d/%d tracks into %s", indexedCount, len(paths), *dbPath)
	return nil
}

func handleList(args []string) error {
	fl := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fl.String("db", storage.DefaultDBFile, "sqlite database path")
	fl.Parse(args)

	db, err := storage.NewDBClientWithPath(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tracks, err := db.ListTracks()
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("no tracks stored")
		return nil
	}

	for _, t := range tracks {
		count, err := db.FingerprintCount(t.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-40s  %6.1fs  %d fingerprints\n",
			t.ID, t.Name, float64(t.DurationMs)/1000.0, count)
	}
	return nil
}

func handleDelete(args []string) error {
	fl := flag.NewFlagSet("delete", flag.ExitOnError)
	dbPath := fl.String("db", storage.DefaultDBFile, "sqlite database path")
	fl.Parse(args)

	if fl.NArg() < 1 {
		return fmt.Errorf("missing track id")
	}
	trackID := fl.Arg(0)

	db, err := storage.NewDBClientWithPath(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	track, err := db.GetTrack(trackID)
	if err != nil {
		return err
	}
	if err := db.DeleteTrack(trackID); err != nil {
		return err
	}
	log.Infof("deleted %s (%s)", track.Name, trackID)
	return nil
}

func collectWAVFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".wav") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
