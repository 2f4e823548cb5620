package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/util"
)

const (
	readChunkSize = 32 * 1024
	readCreditCap = 16
)

// errStopReading ends the read loop without closing the channel; the writer
// owns teardown after a delivered decode failure.
var errStopReading = errors.New("stop reading")

// wireReader drives the inbound side of a connection. Reads are credited:
// each Channel.Read() grants one full message (head plus body frames), so the
// socket stays unread while the previous cycle is in flight.
type wireReader struct {
	ch      *Channel
	br      *bufio.Reader
	credits chan struct{}
	done    chan struct{}
}

func newWireReader(ch *Channel, conn net.Conn) *wireReader {
	r := &wireReader{
		ch:      ch,
		br:      bufio.NewReaderSize(conn, readChunkSize),
		credits: make(chan struct{}, readCreditCap),
		done:    make(chan struct{}),
	}
	ch.SetReadRequestHook(func() {
		select {
		case r.credits <- struct{}{}:
		default:
		}
	})
	ch.SetCloseHook(r.stop)
	return r
}

// awaitCredit blocks until the next read grant or channel close.
func (r *wireReader) awaitCredit() bool {
	select {
	case <-r.done:
		return false
	case <-r.credits:
		return true
	}
}

// runServer decodes inbound requests until the peer disconnects or a decode
// failure is handed to the pipeline.
func (r *wireReader) runServer(trustedCIDRs []*net.IPNet) {
	if err := r.maybeReadProxyLine(trustedCIDRs); err != nil {
		_ = r.ch.Close()
		return
	}
	for r.awaitCredit() {
		if err := r.readRequestMessage(); err != nil {
			if !errors.Is(err, errStopReading) {
				_ = r.ch.Close()
			}
			return
		}
	}
}

// runClient decodes origin responses until the origin disconnects.
func (r *wireReader) runClient(sink *wireSink) {
	for r.awaitCredit() {
		if err := r.readResponseMessage(sink); err != nil {
			if !errors.Is(err, errStopReading) {
				_ = r.ch.Close()
			}
			return
		}
	}
}

func (r *wireReader) stop() {
	close(r.done)
}

// maybeReadProxyLine consumes a proxy-protocol v1 preamble when the peer is
// inside a trusted network, rewriting the channel's source address.
func (r *wireReader) maybeReadProxyLine(trustedCIDRs []*net.IPNet) error {
	if len(trustedCIDRs) == 0 {
		return nil
	}
	remote, ok := r.ch.RemoteAddr().(*net.TCPAddr)
	if !ok || !util.IsIPInTrustedCIDRs(remote.IP, trustedCIDRs) {
		return nil
	}
	peeked, err := r.br.Peek(6)
	if err != nil || string(peeked) != "PROXY " {
		return nil
	}
	line, err := r.readLine()
	if err != nil {
		return err
	}
	// PROXY TCP4 <src> <dst> <srcport> <dstport>
	fields := strings.Fields(line)
	if len(fields) >= 6 && (fields[1] == "TCP4" || fields[1] == "TCP6") {
		r.ch.SetAttr(constants.AttrSourceAddress, fields[2])
		r.ch.Deliver(&codec.ProxyInfo{SourceAddress: fields[2]})
	}
	return nil
}

func (r *wireReader) readRequestMessage() error {
	line, err := r.readLine()
	if err != nil {
		return err
	}

	method, rest, ok1 := strings.Cut(line, " ")
	uri, protocol, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || uri == "" || !strings.HasPrefix(protocol, "HTTP/") {
		head := codec.NewRequestHead(method, uri, protocol)
		head.Err = fmt.Errorf("malformed request line %q", line)
		r.ch.Deliver(head)
		return errStopReading
	}

	head := codec.NewRequestHead(method, uri, protocol)
	if err := r.readHeaders(head.Headers); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		head.Err = err
		r.ch.Deliver(head)
		return errStopReading
	}
	r.ch.Deliver(head)

	return r.readBody(head.Headers, false)
}

func (r *wireReader) readResponseMessage(sink *wireSink) error {
	var head *codec.ResponseHead
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		protocol, rest, _ := strings.Cut(line, " ")
		statusStr, _, _ := strings.Cut(rest, " ")
		status, convErr := strconv.Atoi(statusStr)
		if convErr != nil || !strings.HasPrefix(protocol, "HTTP/") {
			return fmt.Errorf("malformed status line %q", line)
		}
		head = codec.NewResponseHead(protocol, status)
		if err := r.readHeaders(head.Headers); err != nil {
			return err
		}
		// Interim responses are consumed here; the gateway only sees the
		// final one.
		if status < 100 || status >= 200 {
			break
		}
	}
	r.ch.Deliver(head)

	if sink.writtenMethod() == "HEAD" || head.Status == 204 || head.Status == 304 {
		r.deliverLastContent()
		return nil
	}
	untilEOF := !codec.HasChunkedTransferEncoding(head.Headers) && !codec.IsContentLengthSet(head.Headers)
	return r.readBody(head.Headers, untilEOF)
}

func (r *wireReader) readBody(headers *domain.Headers, untilEOF bool) error {
	switch {
	case codec.HasChunkedTransferEncoding(headers):
		return r.readChunkedBody()
	case codec.IsContentLengthSet(headers):
		length, err := strconv.ParseInt(strings.TrimSpace(headers.GetFirst("Content-Length")), 10, 64)
		if err != nil || length < 0 {
			return fmt.Errorf("invalid content-length %q", headers.GetFirst("Content-Length"))
		}
		return r.readFixedBody(length)
	case untilEOF:
		return r.readBodyUntilEOF()
	default:
		r.deliverLastContent()
		return nil
	}
}

func (r *wireReader) readChunkedBody() error {
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		sizeStr, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if err != nil || size < 0 {
			return fmt.Errorf("invalid chunk size %q", line)
		}
		if size == 0 {
			// Trailers run to the blank line.
			for {
				trailer, err := r.readLine()
				if err != nil {
					return err
				}
				if trailer == "" {
					break
				}
			}
			r.deliverLastContent()
			return nil
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r.br, data); err != nil {
			return err
		}
		if _, err := r.readLine(); err != nil {
			return err
		}
		r.ch.Deliver(&codec.Content{Buf: domain.NewBodyBuffer(data)})
	}
}

func (r *wireReader) readFixedBody(length int64) error {
	if length == 0 {
		r.deliverLastContent()
		return nil
	}
	remaining := length
	for remaining > 0 {
		size := remaining
		if size > readChunkSize {
			size = readChunkSize
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r.br, data); err != nil {
			return err
		}
		remaining -= size
		if remaining == 0 {
			r.ch.Deliver(&codec.Content{Buf: domain.NewLastBodyBuffer(data), Last: true})
		} else {
			r.ch.Deliver(&codec.Content{Buf: domain.NewBodyBuffer(data)})
		}
	}
	return nil
}

// readBodyUntilEOF streams a close-delimited response body. The origin ends
// the message by closing the connection.
func (r *wireReader) readBodyUntilEOF() error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.br.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			r.ch.Deliver(&codec.Content{Buf: domain.NewBodyBuffer(data)})
		}
		if err != nil {
			r.deliverLastContent()
			return err
		}
	}
}

func (r *wireReader) readHeaders(headers *domain.Headers) error {
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return fmt.Errorf("malformed header line %q", line)
		}
		headers.Add(key, strings.TrimSpace(value))
	}
}

func (r *wireReader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *wireReader) deliverLastContent() {
	r.ch.Deliver(&codec.Content{Buf: domain.NewLastBodyBuffer(nil), Last: true})
}
