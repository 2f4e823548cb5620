package transport

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/core/domain"
)

// wireSink encodes outgoing frames onto a TCP connection. Writes arrive from
// the channel's event loop; the mutex covers the flush path racing Close.
type wireSink struct {
	conn net.Conn
	bw   *bufio.Writer
	mu   sync.Mutex

	// chunked tracks whether the message currently being written uses
	// chunked transfer framing. Set by the head frame, cleared by the last
	// content frame.
	chunked bool

	// lastMethod remembers the most recent request method written so the
	// response reader can suppress body parsing after HEAD.
	lastMethod atomic.Value

	closed atomic.Bool
}

func newWireSink(conn net.Conn) *wireSink {
	return &wireSink{
		conn: conn,
		bw:   bufio.NewWriter(conn),
	}
}

func (s *wireSink) WriteFrame(msg any) error {
	if s.closed.Load() {
		return fmt.Errorf("connection closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch frame := msg.(type) {
	case *codec.ResponseHead:
		return s.writeResponseHead(frame)
	case *codec.RequestHead:
		return s.writeRequestHead(frame)
	case *codec.Content:
		return s.writeContent(frame)
	default:
		return fmt.Errorf("unsupported frame type %T", msg)
	}
}

func (s *wireSink) writeResponseHead(head *codec.ResponseHead) error {
	reason := http.StatusText(head.Status)
	if reason == "" {
		reason = "Unknown"
	}
	if _, err := fmt.Fprintf(s.bw, "%s %d %s\r\n", head.Protocol, head.Status, reason); err != nil {
		return err
	}
	if err := s.writeHeaders(head.Headers); err != nil {
		return err
	}
	s.chunked = codec.HasChunkedTransferEncoding(head.Headers)
	return nil
}

func (s *wireSink) writeRequestHead(head *codec.RequestHead) error {
	if _, err := fmt.Fprintf(s.bw, "%s %s %s\r\n", head.Method, head.URI, head.Protocol); err != nil {
		return err
	}
	if err := s.writeHeaders(head.Headers); err != nil {
		return err
	}
	s.chunked = codec.HasChunkedTransferEncoding(head.Headers)
	s.lastMethod.Store(head.Method)
	if head.Body != nil {
		defer head.Body.Release()
		if _, err := s.bw.Write(head.Body.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (s *wireSink) writeHeaders(headers *domain.Headers) error {
	for _, entry := range headers.Entries() {
		if _, err := fmt.Fprintf(s.bw, "%s: %s\r\n", entry.Key, entry.Value); err != nil {
			return err
		}
	}
	_, err := s.bw.WriteString("\r\n")
	return err
}

// writeContent consumes the frame's buffer reference. A nil buffer on a last
// frame is a bare end-of-message marker.
func (s *wireSink) writeContent(frame *codec.Content) error {
	var data []byte
	if frame.Buf != nil {
		data = frame.Buf.Bytes()
		defer frame.Buf.Release()
	}

	if s.chunked {
		if len(data) > 0 {
			if _, err := fmt.Fprintf(s.bw, "%x\r\n", len(data)); err != nil {
				return err
			}
			if _, err := s.bw.Write(data); err != nil {
				return err
			}
			if _, err := s.bw.WriteString("\r\n"); err != nil {
				return err
			}
		}
		if frame.Last {
			s.chunked = false
			if _, err := s.bw.WriteString("0\r\n\r\n"); err != nil {
				return err
			}
		}
		return nil
	}

	if len(data) > 0 {
		if _, err := s.bw.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func (s *wireSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bw.Flush()
}

func (s *wireSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

func (s *wireSink) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *wireSink) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *wireSink) writtenMethod() string {
	if m, ok := s.lastMethod.Load().(string); ok {
		return m
	}
	return ""
}
