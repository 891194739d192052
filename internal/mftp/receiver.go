package mftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/jonboulle/clockwork"
)

// ReceiverConfig wires a Receiver. Validate fills in defaults and must be
// called (directly, or implicitly via NewReceiver) exactly once before use.
type ReceiverConfig struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	BindHost        string    // local address to bind; "" binds the wildcard address
	Port            int       // local port to bind
	Output          io.Writer // where accepted DATA payloads are written, in order
	LossProbability float64   // [0,1); probability an otherwise-valid packet is dropped
	Seed            *uint64   // overrides the loss injector's PRNG seed for deterministic tests
	ReportPath      string    // CSV report path; defaults to Mftp_time_log.csv
	MetricsAddr     string    // optional Prometheus listen address; "" disables
}

// Validate checks required fields and applies defaults to the zero-valued
// optional ones.
func (c *ReceiverConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}
	if c.LossProbability < 0 || c.LossProbability >= 1 {
		return fmt.Errorf("loss probability must be in [0,1), got %f", c.LossProbability)
	}
	if c.Output == nil {
		return fmt.Errorf("output is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ReportPath == "" {
		c.ReportPath = defaultReportPath
	}
	return nil
}

// Receiver accepts a single in-order MFTP stream on a bound UDP socket and
// writes accepted payloads, in sequence, to its configured Output.
type Receiver struct {
	cfg  ReceiverConfig
	log  *slog.Logger
	conn *net.UDPConn
	loss *lossInjector

	inBuffer    [MsgLen]byte
	ackBuffer   [HeaderLen]byte
	expectedSeq uint32

	accepted uint64
	dropped  uint64
}

// NewReceiver validates cfg and binds the local listening socket.
func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid receiver config: %w", err)
	}

	conn, err := bindInbound(cfg.BindHost, cfg.Port)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		cfg:  cfg,
		log:  cfg.Logger,
		conn: conn,
		loss: newLossInjector(cfg.LossProbability, cfg.Clock, cfg.Seed),
	}

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, r.log)
	}

	return r, nil
}

// Run drives the receive loop until a FIN arrives or ctx is canceled,
// whichever happens first. Either way it appends the CSV report and logs
// the end-of-run summary before returning.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.conn.Close()

	for {
		select {
		case <-ctx.Done():
			r.finish()
			return ctx.Err()
		default:
		}

		for i := range r.inBuffer {
			r.inBuffer[i] = 0
		}

		n, addr, err := recvFromAddr(r.conn, r.inBuffer[:], receiverPollInterval)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				r.finish()
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if n == 0 {
			continue // poll timeout, loop back to the ctx check
		}
		if n < HeaderLen {
			r.drop("short_packet")
			continue
		}

		switch decodeType(r.inBuffer[:n]) {
		case TypeFin:
			r.log.Info("fin received, ending transfer", "finalSequence", decodeSeq(r.inBuffer[:n]))
			r.finish()
			return nil

		case TypeData:
			r.handleData(n, addr)

		default:
			r.drop("not_data")
		}
	}
}

func (r *Receiver) handleData(n int, addr *net.UDPAddr) {
	seq := decodeSeq(r.inBuffer[:n])
	if seq != r.expectedSeq {
		// Duplicates (and any other sequence mismatch) are dropped
		// silently rather than re-ACKed.
		r.drop("sequence_mismatch")
		return
	}
	if !verifyChecksum(r.inBuffer[:]) {
		r.drop("checksum")
		return
	}
	if !r.loss.keep() {
		r.drop("loss_injected")
		return
	}

	payload := r.inBuffer[HeaderLen:n]
	if _, err := r.cfg.Output.Write(payload); err != nil {
		r.log.Error("failed to write payload", "error", err)
		return
	}

	r.expectedSeq++
	r.accepted++
	receiverPacketsAccepted.Inc()

	for i := range r.ackBuffer {
		r.ackBuffer[i] = 0
	}
	encodeSeq(r.ackBuffer[:], r.expectedSeq)
	encodeType(r.ackBuffer[:], TypeAck)
	encodeChecksum(r.ackBuffer[:])
	if err := sendTo(r.conn, r.ackBuffer[:], addr); err != nil {
		r.log.Warn("failed to send ack", "error", err)
	}
}

func (r *Receiver) drop(reason string) {
	r.dropped++
	receiverPacketsDropped.WithLabelValues(reason).Inc()
}

func (r *Receiver) finish() {
	logReceiverSummary(r.log, r.accepted, r.dropped, r.cfg.LossProbability)
	if err := appendReceiverReport(r.cfg.ReportPath, r.accepted, r.dropped, r.cfg.LossProbability); err != nil {
		r.log.Error("failed to write report", "error", err)
	}
}

// Accepted returns the number of DATA payloads written out so far.
func (r *Receiver) Accepted() uint64 { return r.accepted }

// Dropped returns the number of packets dropped so far, for any reason.
func (r *Receiver) Dropped() uint64 { return r.dropped }
