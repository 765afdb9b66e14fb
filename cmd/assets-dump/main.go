package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bpowers/assets"
)

var (
	noObjects = pflag.Bool("no-objects", false, "omit the object directory")
	verbose   = pflag.BoolP("verbose", "v", false, "log load diagnostics")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE...\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// open everything first so cross-file pointers can be followed
	m := assets.NewManager()
	var files []*assets.Container
	for _, path := range pflag.Args() {
		c, err := m.Open(path, nil, assets.WithLogger(logger))
		if err != nil {
			logger.Error("open failed", "path", path, "err", err)
			os.Exit(1)
		}
		files = append(files, c)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	for _, c := range files {
		s, err := summarize(c)
		if err != nil {
			logger.Error("summarize failed", "file", c.Name(), "err", err)
			os.Exit(1)
		}
		if *noObjects {
			s.Objects = nil
		}
		if err := enc.Encode(s); err != nil {
			logger.Error("yaml encode failed", "err", err)
			os.Exit(1)
		}
	}
	if err := enc.Close(); err != nil {
		logger.Error("yaml close failed", "err", err)
		os.Exit(1)
	}
}
