//go:build linux

package notify

import "golang.org/x/sys/unix"

const (
	epollin      = unix.EPOLLIN
	epollout     = unix.EPOLLOUT
	epollrdhup   = unix.EPOLLRDHUP
	epollhup     = unix.EPOLLHUP
	epollerr     = unix.EPOLLERR
	epollet      = unix.EPOLLET
	epolloneshot = unix.EPOLLONESHOT
)
