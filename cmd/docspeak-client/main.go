package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgnsrekt/docspeak-go/internal/client"
	"github.com/dgnsrekt/docspeak-go/internal/logging"
)

func main() {
	cfg, err := client.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	flag.StringVar(&cfg.ServerURL, "url", cfg.ServerURL, "docspeak server URL (DOCSPEAK_URL)")
	flag.StringVar(&cfg.Language, "lang", cfg.Language, "speech language, en or es (DOCSPEAK_LANGUAGE)")
	out := flag.String("o", "", "output file (default: input name with the audio extension)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <document.pdf|.txt|.docx>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString("invalid flags: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.NewClient(cfg, logger)
	path, err := c.Convert(ctx, flag.Arg(0), *out)
	if err != nil {
		logger.Error("conversion failed", "input", flag.Arg(0), "error", err)
		os.Exit(1)
	}

	fmt.Println(path)
}
