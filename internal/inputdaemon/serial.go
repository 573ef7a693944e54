package inputdaemon

import (
	"context"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

const reportSize = 4

// ReaderConfig names the HID endpoint exposed as a serial device and its
// framing.
type ReaderConfig struct {
	Port string
	Baud int
}

// RunReader owns the HID endpoint exclusively: it opens the port, decodes
// each fixed-length report, and publishes through svc until ctx is
// cancelled. A read error closes and reopens the port with exponential
// backoff (1s -> 30s, capped); subscribers see no events meanwhile but are
// never disconnected, matching the daemon's failure semantics for a
// removable device.
func RunReader(ctx context.Context, cfg ReaderConfig, dec *Decoder, svc *Service) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
		if err != nil {
			slog.Warn("inputdaemon: failed to open HID endpoint, retrying", "port", cfg.Port, "error", err, "backoff", backoff)
			svc.SetConnected(false)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		svc.SetConnected(true)
		backoff = time.Second
		readLoop(ctx, port, dec, svc)
		port.Close()
		svc.SetConnected(false)
	}
}

func readLoop(ctx context.Context, port serial.Port, dec *Decoder, svc *Service) {
	buf := make([]byte, reportSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := readFull(port, buf)
		if err != nil {
			slog.Warn("inputdaemon: HID read error, reopening endpoint", "error", err)
			return
		}
		if n < reportSize {
			continue
		}
		report := Report{
			Laser:  buf[0],
			Nav:    int8(buf[1]),
			Volume: int8(buf[2]),
			Button: buf[3],
		}
		svc.HandleDecoded(dec.Decode(report, eventtypes.OriginHID))
	}
}

// readFull reads exactly len(buf) bytes or returns the first error.
func readFull(port serial.Port, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := port.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			continue
		}
		total += n
	}
	return total, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
