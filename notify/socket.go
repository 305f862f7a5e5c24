package notify

import (
	"net"

	"github.com/nikandfor/errors"
	"golang.org/x/sys/unix"
)

// DefaultBacklog mirrors the literal default (6) the original source uses
// for the listen backlog.
const DefaultBacklog = 6

// Listen creates, binds and starts listening on a non-blocking TCP socket.
// addr == "" binds INADDR_ANY, matching §6's configuration contract.
func Listen(addr string, port int, backlog int) (fd int, err error) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}

	var ip [4]byte
	if addr != "" {
		parsed := net.ParseIP(addr)
		if parsed == nil || parsed.To4() == nil {
			unix.Close(fd)
			return -1, errors.New("notify: invalid IPv4 address")
		}
		copy(ip[:], parsed.To4())
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "bind")
	}
	if err = unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "listen")
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "set nonblock")
	}
	return fd, nil
}

// Accept wraps accept4 with SOCK_NONBLOCK so client fds start non-blocking
// without a second syscall.
func Accept(listenFd int) (fd int, err error) {
	fd, _, err = unix.Accept4(listenFd, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// Writev performs a single gathered write of views, in order.
func Writev(fd int, views [][]byte) (int, error) {
	if len(views) == 0 {
		return 0, nil
	}
	nonEmpty := make([][]byte, 0, len(views))
	for _, v := range views {
		if len(v) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, v)
	}
	if len(nonEmpty) == 0 {
		return 0, nil
	}
	return unix.Writev(fd, nonEmpty)
}

// ReadFd wraps read(2) on a non-blocking fd.
func ReadFd(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

// Close closes fd, ignoring EBADF (already closed).
func Close(fd int) error {
	err := unix.Close(fd)
	if err == unix.EBADF {
		return nil
	}
	return err
}

// IsAgain reports whether err is EAGAIN/EWOULDBLOCK.
func IsAgain(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// IsInterrupted reports whether err is EINTR.
func IsInterrupted(err error) bool {
	return err == unix.EINTR
}
