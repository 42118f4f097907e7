package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/blockroom/logger"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	rpc      *rpc.Server
	address  string
}

// NewServer listens on addr. Services are added with Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		rpc:      rpc.NewServer(),
		address:  listener.Addr().String(),
	}, nil
}

// Register exposes the exported methods of rcvr under its type name.
func (s *Server) Register(rcvr any) error {
	return s.rpc.Register(rcvr)
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start serves connections until Stop closes the listener.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}
