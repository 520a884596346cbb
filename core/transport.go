package core

import (
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Stream is the transport-level byte stream the engine serves requests
// on. Reads can be cancelled by a deadline; everything else the engine
// needs from a socket is hidden behind this interface. net.Conn
// implementations satisfy it.
type Stream interface {
	io.Reader
	io.Writer
	Close() error
	SetReadDeadline(t time.Time) error
}

// Listener accepts streams for the server's accept loop.
type Listener interface {
	Accept() (Stream, error)
	Close() error
	Addr() net.Addr
}

type tcpListener struct {
	ln net.Listener
}

// ListenTCP opens a TCP listening socket with an explicit accept backlog.
// The socket is created directly so the backlog requested by the caller
// is the one handed to listen(2), instead of the kernel default the net
// package would use.
func ListenTCP(host string, port, backlog int) (Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "socket")
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "setsockopt")
	}

	sa := &unix.SockaddrInet4{Port: addr.Port}
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "bind %s:%d", host, port)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "listen")
	}

	// net.FileListener dups the descriptor and owns the copy.
	f := os.NewFile(uintptr(fd), "tcp-listener")
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &tcpListener{ln: ln}, nil
}

func (l *tcpListener) Accept() (Stream, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	tuneConn(conn)
	return conn, nil
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

// tuneConn disables Nagle and enables keepalive on accepted sockets.
// Responses here are small and latency-sensitive; coalescing hurts.
func tuneConn(conn net.Conn) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
}
