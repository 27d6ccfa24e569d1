package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	netrpc "net/rpc"
	"os"

	"github.com/AndrewLester/ntptime/pkg/ntptime"
)

type StatusServer struct {
	Socket string
	Daemon *ntptime.Daemon
}

// Listen serves FetchStatus on the unix socket until ctx is done. A stale
// socket file from an earlier run is removed first.
func (s *StatusServer) Listen(ctx context.Context) error {
	err := os.Remove(s.Socket)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("bind error: %w", err)
	}

	l, err := net.Listen("unix", s.Socket)
	if err != nil {
		return fmt.Errorf("listen error: %w", err)
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	if err := s.Serve(l); err != nil {
		return err
	}
	return ctx.Err()
}

// Serve blocks until l stops accepting.
func (s *StatusServer) Serve(l net.Listener) error {
	server := netrpc.NewServer()
	if err := server.Register(s); err != nil {
		return err
	}
	server.Accept(l)
	return nil
}

func (s *StatusServer) FetchStatus(args int, reply *ntptime.Status) error {
	*reply = s.Daemon.Status()
	return nil
}

type Client struct {
	client *netrpc.Client
}

func Dial(socket string) (*Client, error) {
	client, err := netrpc.Dial("unix", socket)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

func (c *Client) FetchStatus() (ntptime.Status, error) {
	var status ntptime.Status
	err := c.client.Call("StatusServer.FetchStatus", 0, &status)
	return status, err
}

func (c *Client) Close() error {
	return c.client.Close()
}
