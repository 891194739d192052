// Command mftp-sender streams a local file to one or more MFTP receivers.
//
// Usage: mftp-sender host [host...] port file mss [r<repetitions>]
//
// Arguments are read positionally, from the end, mirroring the original
// MultiFTP client: an optional trailing r<N> argument repeats the whole
// transfer N times, followed by the maximum segment size, the input file
// path, the shared remote port, and finally one or more destination
// hostnames.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mftp-go/mftp/internal/logging"
	"github.com/mftp-go/mftp/internal/mftp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mftp-sender:", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return fmt.Errorf("usage: mftp-sender host [host...] port file mss [r<repetitions>]")
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

	if len(args) < 4 {
		return fmt.Errorf("invalid number of arguments passed")
	}

	mss, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return fmt.Errorf("invalid mss %q: %w", args[len(args)-1], err)
	}
	args = args[:len(args)-1]

	fileName := args[len(args)-1]
	args = args[:len(args)-1]

	port, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[len(args)-1], err)
	}
	args = args[:len(args)-1]

	if len(args) == 0 {
		return fmt.Errorf("at least one destination hostname is required")
	}
	destinations := args

	log := logging.New(os.Stderr, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; i < repetitions; i++ {
		if err := transferOnce(ctx, log, destinations, port, fileName, uint16(mss)); err != nil {
			return err
		}
		if i < repetitions-1 {
			// Sleep between repetitions so each run's receiver starts from
			// a clean, synchronized state.
			time.Sleep(500 * time.Millisecond)
		}
	}

	log.Info("system is exiting successfully")
	return nil
}

func transferOnce(ctx context.Context, log *slog.Logger, destinations []string, port int, fileName string, mss uint16) error {
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("open %s: %w", fileName, err)
	}
	defer f.Close()

	sender, err := mftp.NewSender(mftp.SenderConfig{
		Logger:       log,
		Destinations: destinations,
		Port:         port,
		MSS:          mss,
	})
	if err != nil {
		return fmt.Errorf("start sender: %w", err)
	}

	buf := make([]byte, 32*1024)
	for {
		n, readErr := f.Read(buf)
		for i := 0; i < n; i++ {
			if sendErr := sender.Send(buf[i]); sendErr != nil {
				_ = sender.Shutdown(ctx)
				return fmt.Errorf("send byte: %w", sendErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = sender.Shutdown(ctx)
			return fmt.Errorf("read %s: %w", fileName, readErr)
		}
	}

	return sender.Shutdown(ctx)
}
