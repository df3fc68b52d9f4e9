// Package input reads payloads from a local source, one per line, and
// hands them to the node.
package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// maxLineSize is the largest line that is accepted as a payload.
const maxLineSize = 1 << 20

// Submitter is the behavior required to hand a payload to the node.
type Submitter interface {
	SubmitPayload(data []byte) (string, error)
}

// Run reads lines from the reader until it is exhausted or the context is
// cancelled. Every line that is not blank is submitted as a payload. A line
// that is rejected is reported through the event handler and reading goes
// on. It returns the number of payloads submitted.
func Run(ctx context.Context, r io.Reader, sub Submitter, evHandler func(v string, args ...any)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var submitted int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return submitted, err
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		id, err := sub.SubmitPayload([]byte(line))
		if err != nil {
			evHandler("input: Run: WARNING: payload rejected: %s", err)
			continue
		}

		submitted++
		evHandler("input: Run: payload queued: id[%s]: bytes[%d]", id, len(line))
	}

	if err := scanner.Err(); err != nil {
		return submitted, fmt.Errorf("reading input: %w", err)
	}

	return submitted, nil
}
