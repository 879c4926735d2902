package device

import (
	"bufio"
	"context"
	"io"

	"go.uber.org/zap"
)

// ReadLines scans newline-terminated records from the serial stream into the
// accumulator until the stream ends or the context is cancelled. Undecodable
// lines (boot noise, partial writes) are skipped, never fatal.
func ReadLines(ctx context.Context, r io.Reader, acc *Accumulator, log *zap.SugaredLogger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw := scanner.Bytes()
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}

		line, err := ParseLine(raw)
		if err != nil {
			log.Debugw("skipping undecodable serial line", "error", err)
			continue
		}
		if line.Notice() {
			log.Infow("device notice", "status", line.Status, "error", line.Error)
			continue
		}
		acc.Add(line)
	}
	return scanner.Err()
}
