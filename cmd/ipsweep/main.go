package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/internal/runner"
)

func main() {
	options := runner.ParseOptions()
	ipsweepRunner, err := runner.NewRunner(options)
	if err != nil {
		gologger.Fatal().Msgf("Could not create runner: %s\n", err)
	}
	defer ipsweepRunner.Close()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup close handler
	go func() {
		<-c
		fmt.Println("\r- Ctrl+C pressed in Terminal, finishing in-flight hosts...")
		cancel()
	}()

	err = ipsweepRunner.Run(ctx)
	if errors.Is(err, runner.ErrScanInterrupted) {
		ipsweepRunner.Close()
		os.Exit(130)
	}
	if err != nil {
		ipsweepRunner.Close()
		gologger.Fatal().Msgf("Could not run ipsweep: %s\n", err)
	}
}
