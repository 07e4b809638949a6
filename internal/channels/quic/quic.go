// Package quic implements the QUIC gateway adapter: a length-prefixed
// ChannelEvent/AgentResponse exchange over QUIC bidirectional streams.
package quic

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// maxFrameBytes bounds the length-prefixed payload read per stream (1 MiB).
const maxFrameBytes = 1 << 20

// Handler processes one decoded ChannelEvent and returns the AgentResponse
// to write back on the same stream.
type Handler func(ctx context.Context, event models.ChannelEvent) (models.AgentResponse, error)

// Config carries the UDP listen address and TLS material. If Cert is the
// zero value a self-signed localhost certificate is generated.
type Config struct {
	Addr string
	Cert *tls.Certificate
}

// Adapter serves inbound QUIC connections, decoding one ChannelEvent per
// bidirectional stream and invoking Handler to produce the response.
type Adapter struct {
	cfg      Config
	handler  Handler
	listener *quic.Listener
}

func New(cfg Config, handler Handler) *Adapter {
	return &Adapter{cfg: cfg, handler: handler}
}

func (a *Adapter) ChannelID() models.ChannelID {
	return models.ChannelID("quic:gateway")
}

// Run listens on Config.Addr and serves connections until ctx is canceled.
// 0-RTT is permitted. An accept error on the listener ends Run. When
// accepting a stream on a connection fails, that connection's loop returns
// silently, whatever the error: an ApplicationError close and any other
// connection error are handled alike, and neither is logged or returned.
func (a *Adapter) Run(ctx context.Context, inboundTx chan<- models.ChannelEvent) error {
	tlsConf, err := a.tlsConfig()
	if err != nil {
		return fmt.Errorf("quic tls config: %w", err)
	}

	listener, err := quic.ListenAddr(a.cfg.Addr, tlsConf, &quic.Config{
		Allow0RTT: true,
	})
	if err != nil {
		return fmt.Errorf("quic listen: %w", err)
	}
	a.listener = listener
	defer listener.Close()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("quic accept: %w", err)
		}
		go a.serveConn(ctx, conn, inboundTx)
	}
}

func (a *Adapter) serveConn(ctx context.Context, conn *quic.Conn, inboundTx chan<- models.ChannelEvent) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go a.serveStream(ctx, stream, inboundTx)
	}
}

func (a *Adapter) serveStream(ctx context.Context, stream *quic.Stream, inboundTx chan<- models.ChannelEvent) {
	defer stream.Close()

	payload, err := readFrame(stream)
	if err != nil {
		return
	}

	var event models.ChannelEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}

	if inboundTx != nil {
		select {
		case inboundTx <- event:
		case <-ctx.Done():
			return
		}
	}

	resp := models.AgentResponse{ChannelID: event.ChannelID, SessionID: event.SessionID, Content: "OK"}
	if a.handler != nil {
		handled, err := a.handler(ctx, event)
		if err == nil {
			resp = handled
		}
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = writeFrame(stream, respBytes)
}

func readFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 || length > maxFrameBytes {
		return nil, fmt.Errorf("frame length %d out of bounds", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("OK")
	}
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// SendResponse is a no-op: the QUIC gateway's handler writes a response
// inline on the request stream, so there is no separate return path to
// dispatch through.
func (a *Adapter) SendResponse(ctx context.Context, resp models.AgentResponse) error {
	return nil
}

func (a *Adapter) tlsConfig() (*tls.Config, error) {
	if a.cfg.Cert != nil {
		return &tls.Config{Certificates: []tls.Certificate{*a.cfg.Cert}, NextProtos: []string{"agentbridge-quic"}}, nil
	}
	cert, err := generateSelfSignedCert()
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{*cert}, NextProtos: []string{"agentbridge-quic"}}, nil
}
