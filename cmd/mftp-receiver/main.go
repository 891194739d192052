// Command mftp-receiver binds a local UDP port and writes a single
// incoming MFTP stream to a file.
//
// Usage: mftp-receiver port file loss_probability [r<repetitions>]
//
// Arguments are read positionally, from the end, mirroring the original
// MultiFTP server: an optional trailing r<N> argument repeats the whole
// receive N times, followed by the loss-injection probability, the
// output file path, and the local bind port.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mftp-go/mftp/internal/logging"
	"github.com/mftp-go/mftp/internal/mftp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mftp-receiver:", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return fmt.Errorf("usage: mftp-receiver port file loss_probability [r<repetitions>]")
	}

	repetitions := 1
	if last := args[len(args)-1]; len(last) > 0 && last[0] == 'r' {
		n, err := strconv.Atoi(last[1:])
		if err != nil {
			return fmt.Errorf("invalid repetitions argument %q: %w", last, err)
		}
		repetitions = n
		args = args[:len(args)-1]
	}

	if len(args) != 3 {
		return fmt.Errorf("invalid number of arguments passed")
	}

	lossProbability, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid loss probability %q: %w", args[2], err)
	}
	fileName := args[1]
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[0], err)
	}

	log := logging.New(os.Stderr, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; i < repetitions; i++ {
		err := receiveOnce(ctx, log, port, fileName, lossProbability)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			return err
		}
	}

	log.Info("system is exiting successfully")
	return nil
}

func receiveOnce(ctx context.Context, log *slog.Logger, port int, fileName string, lossProbability float64) error {
	out, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("create %s: %w", fileName, err)
	}
	defer out.Close()

	receiver, err := mftp.NewReceiver(mftp.ReceiverConfig{
		Logger:          log,
		Port:            port,
		Output:          out,
		LossProbability: lossProbability,
	})
	if err != nil {
		return fmt.Errorf("start receiver: %w", err)
	}

	return receiver.Run(ctx)
}
