package stubhost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/lvctl/internal/observability"
	"github.com/danmuck/lvctl/internal/protocol/frame"
	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Server is a stub VI host.
type Server struct {
	cfg      Config
	handlers *Handlers
	panels   *PanelStore
	router   *gin.Engine
	started  time.Time

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool

	activeClients atomic.Int64
	served        atomic.Uint64
	listening     atomic.Bool
	addr          atomic.Value
}

// New builds a server with the built-in handlers registered.
func New(cfg Config) *Server {
	cfg = cfg.WithDefaults()
	s := &Server{
		cfg:      cfg,
		handlers: NewHandlers(),
		panels:   NewPanelStore(),
		started:  time.Now(),
		conns:    make(map[net.Conn]struct{}),
	}
	_ = s.handlers.Handle(schema.CommandRunVI, EchoRun(cfg.EchoRenames))
	_ = s.handlers.Handle(schema.CommandDescribeError, DescribeError(DescribeErrorText))
	_ = s.handlers.Handle(schema.CommandSetControls, SetControlsHandler(s.panels))
	_ = s.handlers.Handle(schema.CommandGetIndicators, GetIndicatorsHandler(s.panels))
	s.router = s.newRouter()
	return s
}

func (s *Server) Handlers() *Handlers {
	return s.handlers
}

func (s *Server) Panels() *PanelStore {
	return s.panels
}

// Addr returns the bound listener address once Serve has started.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

// Served returns the number of requests answered so far.
func (s *Server) Served() uint64 {
	return s.served.Load()
}

// Run listens on the configured addresses and blocks until SIGINT/SIGTERM.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext is Run bounded by ctx instead of signals.
func (s *Server) RunContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("stubhost listening")

	adminErr := make(chan error, 1)
	if s.cfg.AdminListenAddr != "" {
		go func() {
			adminErr <- s.ServeAdmin(ctx, s.cfg.AdminListenAddr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

// Serve accepts connections on ln until ctx is done or ln is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.connsMu.Lock()
	s.closing = false
	s.connsMu.Unlock()
	s.addr.Store(ln.Addr().String())
	s.listening.Store(true)
	defer s.listening.Store(false)

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	go func() {
		<-connCtx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.trackConn(conn) {
			_ = conn.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(connCtx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.activeClients.Add(1)
	log.Debug().Str("remote", remote).Int64("active_clients", active).Msg("stubhost client connected")
	defer func() {
		remaining := s.activeClients.Add(-1)
		log.Debug().Str("remote", remote).Int64("active_clients", remaining).Msg("stubhost client disconnected")
	}()

	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}
		body, err := frame.ReadFrame(conn, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, frame.ErrConnectionClosed) {
				log.Warn().Str("remote", remote).Err(err).Msg("stubhost read failed")
			}
			return
		}

		resp := s.respond(ctx, body)
		payload, err := schema.EncodeResponse(resp)
		if err != nil {
			log.Error().Str("remote", remote).Err(err).Msg("stubhost encode response failed")
			payload, _ = schema.EncodeResponse(schema.Response{
				RequestID: resp.RequestID,
				Fault:     &schema.ErrorCluster{Status: true, Code: CodeHandlerPanic, Source: "stubhost: unencodable response"},
			})
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := frame.WriteFrame(conn, payload, s.cfg.Limits); err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("stubhost write failed")
			return
		}
		s.served.Add(1)
	}
}

func (s *Server) respond(ctx context.Context, body []byte) schema.Response {
	req, err := schema.DecodeRequest(body)
	if err != nil {
		log.Warn().Err(err).Msg("stubhost malformed request")
		observability.RecordStubRequest("malformed", true)
		return Fault(CodeMalformedRequest, fmt.Sprintf("stubhost: %v", err))
	}
	resp := s.handlers.Dispatch(ctx, req)
	resp.RequestID = req.RequestID
	observability.RecordStubRequest(string(req.Command), resp.Faulted())
	log.Debug().
		Str("command", string(req.Command)).
		Str("request_id", req.RequestID).
		Str("vi_path", req.VIPath).
		Bool("faulted", resp.Faulted()).
		Msg("stubhost request")
	return resp
}

// trackConn reports false once shutdown has started.
func (s *Server) trackConn(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closing = true
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

// ActiveClients returns the number of open connections.
func (s *Server) ActiveClients() int64 {
	return s.activeClients.Load()
}
