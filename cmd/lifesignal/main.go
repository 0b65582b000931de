package main

import (
	"context"
	"os"
	"os/signal"

	"lifesignal/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		mode, _ := output.ParseColorMode(colorFlag)
		printer := output.NewPrinter(output.PrinterOptions{Err: os.Stderr, ColorMode: mode})
		printer.FormatError(err)
		os.Exit(output.ExitCode(err))
	}
}
