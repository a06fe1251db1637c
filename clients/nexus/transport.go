package nexus

import (
	"bufio"
	"net"
	"time"
)

//Transport is the ordered, reliable duplex byte channel the engine mines
// over. Reads block until the node delivers the next bytes. Reconnection
// policy belongs to the caller, not the engine.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	LocalEndpoint() net.Addr
	RemoteEndpoint() net.Addr
}

type tcpTransport struct {
	conn net.Conn
	rd   *bufio.Reader
}

//DialTCP opens a TCP transport towards addr
func DialTCP(addr string, timeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewTransport(conn), nil
}

//NewTransport wraps an established connection as a Transport
func NewTransport(conn net.Conn) Transport {
	return &tcpTransport{conn: conn, rd: bufio.NewReader(conn)}
}

func (t *tcpTransport) Read(p []byte) (int, error)  { return t.rd.Read(p) }
func (t *tcpTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *tcpTransport) Close() error                { return t.conn.Close() }

func (t *tcpTransport) LocalEndpoint() net.Addr  { return t.conn.LocalAddr() }
func (t *tcpTransport) RemoteEndpoint() net.Addr { return t.conn.RemoteAddr() }
