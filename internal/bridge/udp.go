package bridge

import (
	"fmt"
	"net"
	"time"
)

const pollInterval = 2 * time.Millisecond

// UDPLink bridges the agent over a datagram socket, answering whichever
// peer spoke last.
type UDPLink struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// ListenUDP opens a UDP link on addr (e.g. ":12345").
func ListenUDP(addr string) (*UDPLink, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen %s: %w", addr, err)
	}
	return &UDPLink{conn: conn}, nil
}

// LocalAddr returns the bound socket address.
func (l *UDPLink) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Receive reads one datagram, remembering its sender as the reply peer.
// It returns zero when nothing arrived within the poll interval.
func (l *UDPLink) Receive(p []byte) (int, error) {
	if err := l.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, err
	}
	n, peer, err := l.conn.ReadFromUDP(p)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return 0, nil
		}
		return 0, err
	}
	l.peer = peer
	return n, nil
}

// Reply sends p to the last peer seen by Receive.
func (l *UDPLink) Reply(p []byte) (int, error) {
	if l.peer == nil {
		return 0, ErrNoPeer
	}
	return l.conn.WriteToUDP(p, l.peer)
}

// Close releases the socket.
func (l *UDPLink) Close() error {
	return l.conn.Close()
}
