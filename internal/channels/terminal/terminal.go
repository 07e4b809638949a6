// Package terminal implements the CLI channel adapter: a single local
// session driven by stdin/stdout.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agentbridge/agentbridge/pkg/models"
)

const channelID = models.ChannelID("cli:local")

// Adapter reads newline-delimited commands from stdin and writes responses
// to stdout. It serves exactly one session for the lifetime of the process.
type Adapter struct {
	in  io.Reader
	out io.Writer

	mu        sync.Mutex
	sessionID models.SessionID
}

// New creates a terminal adapter over in/out, typically os.Stdin/os.Stdout.
func New(in io.Reader, out io.Writer) *Adapter {
	return &Adapter{in: in, out: out, sessionID: models.SessionID(uuid.NewString())}
}

func (a *Adapter) ChannelID() models.ChannelID {
	return channelID
}

// Run reads lines from stdin until EOF, ctx cancellation, or a "/quit" or
// "/exit" line, emitting a ChannelEvent for every non-empty trimmed line.
func (a *Adapter) Run(ctx context.Context, inboundTx chan<- models.ChannelEvent) error {
	scanner := bufio.NewScanner(a.in)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if trimmed == "/quit" || trimmed == "/exit" {
				return nil
			}

			event := models.ChannelEvent{
				ChannelID:   channelID,
				SessionID:   a.currentSession(),
				UserMessage: trimmed,
			}
			select {
			case inboundTx <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (a *Adapter) currentSession() models.SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// SendResponse writes resp to stdout, prefixing "Error: " when IsError.
func (a *Adapter) SendResponse(ctx context.Context, resp models.AgentResponse) error {
	prefix := ""
	if resp.IsError {
		prefix = "Error: "
	}
	_, err := fmt.Fprintf(a.out, "%s%s\n", prefix, resp.Content)
	return err
}
