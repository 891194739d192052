package mftp

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// appendSenderReport appends one CSV row to path: destination count, MSS,
// estimated per-destination effective loss rate, and elapsed wall-clock
// seconds between start and end. Mirrors MftpClient::write_time_log.
func appendSenderReport(path string, destinations int, mss uint16, timeoutEvents, packetCount uint64, elapsedSeconds float64) error {
	var loss float64
	if packetCount > 0 && destinations > 0 {
		loss = (float64(timeoutEvents) / float64(packetCount)) / float64(destinations)
	}
	row := []string{
		strconv.Itoa(destinations),
		strconv.Itoa(int(mss)),
		strconv.FormatFloat(loss, 'f', 3, 64),
		strconv.FormatFloat(elapsedSeconds, 'f', 3, 64),
	}
	return appendCSVRow(path, row)
}

// appendReceiverReport appends one CSV row to path: packets accepted,
// packets dropped, configured loss rate, observed effective loss
// (dropped / (accepted + dropped)). The Receiver passes its drop count for
// every reason (short packet, wrong type, wrong sequence, bad checksum and
// injected loss); the injector's drops are not counted separately.
func appendReceiverReport(path string, accepted, dropped uint64, configuredLoss float64) error {
	total := accepted + dropped
	var observed float64
	if total > 0 {
		observed = float64(dropped) / float64(total)
	}
	row := []string{
		strconv.FormatUint(accepted, 10),
		strconv.FormatUint(dropped, 10),
		strconv.FormatFloat(configuredLoss, 'f', 4, 64),
		strconv.FormatFloat(observed, 'f', 4, 64),
	}
	return appendCSVRow(path, row)
}

func appendCSVRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// logSenderSummary emits the sender's end-of-run report to the console at
// warn level, the structured equivalent of MftpClient::system_report.
func logSenderSummary(log *slog.Logger, packetCount, timeoutEvents uint64, timeoutUs float64, estRTTUs float64) {
	var loss float64
	if packetCount > 0 {
		loss = float64(timeoutEvents) / float64(packetCount)
	}
	log.Warn("sender system report",
		"packetsTransmitted", packetCount,
		"timeoutEvents", timeoutEvents,
		"effectiveLossRate", loss,
		"currentTimeoutSeconds", timeoutUs/1_000_000,
		"estimatedRTTSeconds", estRTTUs/1_000_000,
	)
}

// logReceiverSummary emits the receiver's end-of-run report, the
// structured equivalent of MftpServer::system_report.
func logReceiverSummary(log *slog.Logger, accepted, dropped uint64, configuredLoss float64) {
	total := accepted + dropped
	var observed float64
	if total > 0 {
		observed = float64(dropped) / float64(total)
	}
	log.Warn("receiver system report",
		"packetsReceived", accepted,
		"packetsLost", dropped,
		"configuredLossRate", configuredLoss,
		"effectiveLossRate", observed,
	)
}
