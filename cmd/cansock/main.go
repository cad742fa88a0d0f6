// cansock is a small command line tool for talking to SocketCAN
// interfaces: dump frames off the bus or send a single frame.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kstaniek/go-socketcan/cmd/cansock/cmd"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quitChan
		cancel()
	}()
	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
