package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"inkwell-ai/internal/domain"
)

// sseMaxLineBytes bounds a single SSE data line. Anthropic packs whole
// content blocks into one event, so the bufio default of 64KB is too small.
const sseMaxLineBytes = 1 << 20

// parseSSEStream turns an SSE response body into a StreamDelta channel.
// parseLine decodes one provider-specific data payload; lines it rejects are
// dropped rather than terminating the stream. The channel closes on end of
// stream, ctx cancellation, or a Done delta, and the body is always closed.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseLine func(data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), sseMaxLineBytes)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()

			// Blank keep-alives and ": comment" lines carry no data.
			if len(line) == 0 || line[0] == ':' {
				continue
			}

			// Everything except "data: ..." (event:, id:, retry:) is ignored;
			// the payloads we decode identify themselves.
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimPrefix(line, []byte("data: "))

			// OpenAI-style end-of-stream marker.
			if bytes.Equal(data, []byte("[DONE]")) {
				ch <- domain.StreamDelta{Done: true}
				return
			}

			delta, err := parseLine(data)
			if err != nil || delta == nil {
				continue
			}

			select {
			case ch <- *delta:
			case <-ctx.Done():
				return
			}

			if delta.Done {
				return
			}
		}
		// A read error mid-stream still signals Done so the consumer's
		// range loop terminates instead of waiting for a marker.
		if err := scanner.Err(); err != nil {
			select {
			case ch <- domain.StreamDelta{Done: true}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}
