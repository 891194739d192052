package mftp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SenderConfig wires a Sender. Validate fills in defaults and must be
// called (directly, or implicitly via NewSender) exactly once before use.
type SenderConfig struct {
	Logger       *slog.Logger
	Clock        clockwork.Clock
	Destinations []string // remote hostnames, at least one
	Port         int      // remote port, shared by every destination
	MSS          uint16   // maximum segment size in bytes, >= 1
	ReportPath   string   // CSV report path; defaults to Mftp_time_log.csv
	MetricsAddr  string   // optional Prometheus listen address; "" disables
}

// Validate checks required fields and applies defaults to the zero-valued
// optional ones. Grounded on the Config.Validate pattern used throughout
// the example pack's service configs.
func (c *SenderConfig) Validate() error {
	if len(c.Destinations) == 0 {
		return fmt.Errorf("at least one destination is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}
	if c.MSS == 0 || int(c.MSS) > MaxMSS {
		return fmt.Errorf("mss must be in 1-%d, got %d", MaxMSS, c.MSS)
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

// Sender streams a byte-at-a-time producer to every configured
// destination using a stop-and-wait engine.
type Sender struct {
	cfg SenderConfig
	log *slog.Logger

	destinations []*destination
	rtt          *rttEstimator

	mss         uint16 // mutable: swapped to the residual byteIndex at shutdown
	outBuffer   [MsgLen]byte
	inBuffer    [MsgLen]byte
	byteIndex   int
	currentSeq  uint32
	expectedAck uint32

	packetCount   uint64
	timeoutEvents uint64

	startedAt time.Time

	metricsSrv *http.Server
}

// NewSender validates cfg, resolves every destination, and opens one
// outbound socket per destination.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sender config: %w", err)
	}

	s := &Sender{
		cfg:       cfg,
		log:       cfg.Logger,
		mss:       cfg.MSS,
		rtt:       newRTTEstimator(cfg.Clock),
		startedAt: cfg.Clock.Now(),
	}

	for _, host := range cfg.Destinations {
		d, err := newDestination(host, cfg.Port)
		if err != nil {
			s.closeDestinations()
			return nil, err
		}
		s.destinations = append(s.destinations, d)
	}

	if cfg.MetricsAddr != "" {
		s.metricsSrv = startMetricsServer(cfg.MetricsAddr, s.log)
	}

	return s, nil
}

func startMetricsServer(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// Send accepts one byte from the producer. If the packet buffer isn't
// full yet, the byte is stored and Send returns immediately. Otherwise
// the buffered packet is committed (transmitted and retransmitted until
// every destination acknowledges it) before the byte is placed as the
// first byte of the next packet.
func (s *Sender) Send(b byte) error {
	for {
		if s.byteIndex < int(s.mss) {
			s.outBuffer[HeaderLen+s.byteIndex] = b
			s.byteIndex++
			return nil
		}
		if err := s.commitAndAdvance(); err != nil {
			return err
		}
	}
}

// commitAndAdvance transmits the buffered packet, waits for every
// destination to acknowledge it (retransmitting on timeout), then resets
// the buffer and advances current_seq.
func (s *Sender) commitAndAdvance() error {
	if s.expectedAck == s.currentSeq {
		s.expectedAck = s.currentSeq + 1
	}

	encodeSeq(s.outBuffer[:], s.currentSeq)
	encodeType(s.outBuffer[:], TypeData)
	encodeChecksum(s.outBuffer[:])

	s.rtt.startTimer()
	wireLen := HeaderLen + int(s.mss)
	for _, d := range s.destinations {
		if d.ackedAt == s.currentSeq {
			if err := sendTo(d.conn, s.outBuffer[:wireLen], d.addr); err != nil {
				return fmt.Errorf("send to %s: %w", d.host, err)
			}
		}
	}
	senderPacketsSent.Inc()

	if err := s.waitForAcks(wireLen); err != nil {
		return err
	}

	for i := range s.outBuffer {
		s.outBuffer[i] = 0
	}
	s.byteIndex = 0
	s.currentSeq++
	s.packetCount++

	if mib := uint64(s.currentSeq) * uint64(s.mss) / (1 << 20); s.currentSeq > 2 && (uint64(s.currentSeq)*uint64(s.mss))%(1<<20) < uint64(s.mss) {
		s.log.Info("transfer progress", "mebibytesTransmitted", mib)
	}

	return nil
}

// waitForAcks is the SaW wait phase: poll every unacked destination for an
// ACK, and retransmit to whoever hasn't acked once the adaptive timeout
// elapses.
func (s *Sender) waitForAcks(wireLen int) error {
	for !s.allAcked() {
		for _, d := range s.destinations {
			if d.ackedForCurrent(s.currentSeq) {
				continue
			}
			n, err := recvFromPolling(d.conn, s.inBuffer[:])
			if err != nil {
				return fmt.Errorf("recv from %s: %w", d.host, err)
			}
			if n <= 0 {
				continue
			}
			seq := decodeSeq(s.inBuffer[:])
			if seq == s.currentSeq+1 {
				d.ackedAt = seq
				d.segment++
				s.rtt.sample()
				senderEstimatedTimeout.Set(s.rtt.Timeout().Seconds())
			}
		}

		if s.rtt.expired() {
			s.log.Warn("saw timeout, retransmitting", "sequence", s.currentSeq)
			s.timeoutEvents++
			senderTimeoutEvents.Inc()
			s.rtt.startTimer()
			for _, d := range s.destinations {
				if d.ackedAt == s.currentSeq {
					if err := sendTo(d.conn, s.outBuffer[:wireLen], d.addr); err != nil {
						return fmt.Errorf("retransmit to %s: %w", d.host, err)
					}
					senderRetransmits.WithLabelValues(d.host).Inc()
				}
			}
		}
	}
	return nil
}

func (s *Sender) allAcked() bool {
	for _, d := range s.destinations {
		if !d.ackedForCurrent(s.currentSeq) {
			return false
		}
	}
	return true
}

// finRetransmits and finGap harden FIN delivery: FIN is fire-and-forget
// by design, but sending it a handful of times with a short gap
// meaningfully improves delivery odds without changing the (still
// unacknowledged) wire contract.
const (
	finRetransmits = 3
	finGap         = 10 * time.Millisecond
)

// Shutdown flushes any partial packet (possibly short, possibly empty),
// emits FIN to every destination, closes sockets, and appends the CSV
// report row.
func (s *Sender) Shutdown(ctx context.Context) error {
	// Flush whatever is buffered (possibly nothing) as one short-MSS
	// packet: temporarily shrink mss to the residual byte count so
	// commitAndAdvance treats the partial buffer as full. Unlike the
	// original's recursive flush, this always commits exactly once,
	// including the empty-file / exact-multiple-of-MSS case where the
	// residual is zero.
	savedMSS := s.mss
	s.mss = uint16(s.byteIndex)
	if err := s.commitAndAdvance(); err != nil {
		return err
	}
	s.mss = savedMSS

	for i := range s.outBuffer {
		s.outBuffer[i] = 0
	}
	encodeSeq(s.outBuffer[:], s.currentSeq)
	encodeType(s.outBuffer[:], TypeFin)

	for i := 0; i < finRetransmits; i++ {
		for _, d := range s.destinations {
			if err := sendTo(d.conn, s.outBuffer[:HeaderLen], d.addr); err != nil {
				s.log.Warn("failed to send FIN", "destination", d.host, "error", err)
			}
		}
		if i < finRetransmits-1 {
			select {
			case <-ctx.Done():
			case <-s.cfg.Clock.After(finGap):
			}
		}
	}

	s.closeDestinations()

	elapsed := s.cfg.Clock.Now().Sub(s.startedAt).Seconds()
	logSenderSummary(s.log, s.packetCount, s.timeoutEvents, float64(s.rtt.Timeout().Microseconds()), s.rtt.EstRTT())
	if err := appendSenderReport(s.cfg.ReportPath, len(s.destinations), s.cfg.MSS, s.timeoutEvents, s.packetCount, elapsed); err != nil {
		s.log.Error("failed to write report", "error", err)
	}

	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}

	return nil
}

func (s *Sender) closeDestinations() {
	for _, d := range s.destinations {
		_ = d.close()
	}
}

// PacketCount returns the number of DATA packets fully committed so far.
func (s *Sender) PacketCount() uint64 { return s.packetCount }

// TimeoutEvents returns the number of SaW timer expirations observed.
func (s *Sender) TimeoutEvents() uint64 { return s.timeoutEvents }
