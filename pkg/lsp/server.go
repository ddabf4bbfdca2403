package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// JSON-RPC and LSP error codes.
const (
	codeParseError           = -32700
	codeInvalidRequest       = -32600
	codeMethodNotFound       = -32601
	codeInternalError        = -32603
	codeServerNotInitialized = -32002
)

const (
	methodInitialize = "initialize"
	methodShutdown   = "shutdown"
	methodExit       = "exit"
)

// phase is where the connection is in the initialize/shutdown handshake.
type phase int

const (
	phaseStarting phase = iota
	phaseRunning
	phaseShutdown
)

// HandlerFunc processes a JSON-RPC request and returns a result or error.
type HandlerFunc func(params json.RawMessage) (any, error)

// NotifyFunc processes a JSON-RPC notification (no response expected).
type NotifyFunc func(params json.RawMessage)

// Server is the Content-Length framed JSON-RPC 2.0 transport. It gates
// requests on the LSP lifecycle: only initialize is served before the
// handshake, and nothing but exit after shutdown.
type Server struct {
	reader   *bufio.Reader
	writer   io.Writer
	logger   zerolog.Logger
	handlers map[string]HandlerFunc
	notifs   map[string]NotifyFunc

	writeMu sync.Mutex
	phase   phase
	stopped bool
}

func NewServer(in io.Reader, out io.Writer, logger zerolog.Logger) *Server {
	return &Server{
		reader:   bufio.NewReader(in),
		writer:   out,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		notifs:   make(map[string]NotifyFunc),
	}
}

func (s *Server) Handle(method string, fn HandlerFunc) {
	s.handlers[method] = fn
}

func (s *Server) OnNotify(method string, fn NotifyFunc) {
	s.notifs[method] = fn
}

// Stop makes Serve return once the current message is handled.
func (s *Server) Stop() {
	s.stopped = true
}

// Serve handles messages until the input ends or Stop is called.
func (s *Server) Serve() error {
	for !s.stopped {
		err := s.ServeOnce()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ServeOnce reads and dispatches one message. A body that is not JSON is
// answered with a parse error and leaves the connection usable.
func (s *Server) ServeOnce() error {
	msg, err := readFrame(s.reader)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		s.logger.Warn().Err(err).Msg("malformed message")
		return s.replyError(json.RawMessage("null"), codeParseError, err.Error())
	}
	if err != nil {
		return err
	}

	if len(msg.ID) == 0 || string(msg.ID) == "null" {
		s.notify(msg)
		return nil
	}
	return s.request(msg)
}

func (s *Server) notify(msg rpcMessage) {
	if s.phase == phaseStarting && msg.Method != methodExit {
		s.logger.Debug().Str("method", msg.Method).Msg("notification before initialize dropped")
		return
	}
	fn, ok := s.notifs[msg.Method]
	if !ok {
		s.logger.Debug().Str("method", msg.Method).Msg("unhandled notification")
		return
	}
	if err := s.guard(msg.Method, func() error { fn(msg.Params); return nil }); err != nil {
		s.logger.Error().Err(err).Str("method", msg.Method).Msg("notification failed")
	}
}

func (s *Server) request(msg rpcMessage) error {
	switch {
	case s.phase == phaseStarting && msg.Method != methodInitialize:
		return s.replyError(msg.ID, codeServerNotInitialized, "server not initialized")
	case s.phase == phaseShutdown:
		return s.replyError(msg.ID, codeInvalidRequest, "server is shutting down")
	}

	fn, ok := s.handlers[msg.Method]
	if !ok {
		s.logger.Debug().Str("method", msg.Method).Msg("unhandled request")
		return s.replyError(msg.ID, codeMethodNotFound, "method not found: "+msg.Method)
	}

	var result any
	err := s.guard(msg.Method, func() error {
		var handlerErr error
		result, handlerErr = fn(msg.Params)
		return handlerErr
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("method", msg.Method).Msg("request failed")
		return s.replyError(msg.ID, codeInternalError, err.Error())
	}

	switch msg.Method {
	case methodInitialize:
		s.phase = phaseRunning
	case methodShutdown:
		s.phase = phaseShutdown
	}
	return s.reply(rpcResponse{JSONRPC: "2.0", ID: msg.ID, Result: result})
}

// guard turns a handler panic into an error so one bad request cannot take
// the editor session down.
func (s *Server) guard(method string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", method, r)
		}
	}()
	return fn()
}

func (s *Server) replyError(id json.RawMessage, code int, message string) error {
	return s.reply(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) reply(resp rpcResponse) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.writer, resp)
}

// Notify sends a server-initiated notification.
func (s *Server) Notify(method string, params any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.writer, rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// readFrame reads the header block and the body it announces. Headers other
// than Content-Length are ignored.
func readFrame(br *bufio.Reader) (rpcMessage, error) {
	contentLen := -1
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return rpcMessage{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return rpcMessage{}, fmt.Errorf("invalid Content-Length %q", strings.TrimSpace(value))
		}
		contentLen = n
	}
	if contentLen <= 0 {
		return rpcMessage{}, errors.New("missing Content-Length")
	}

	body := make([]byte, contentLen)
	if _, err := io.ReadFull(br, body); err != nil {
		return rpcMessage{}, err
	}
	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return rpcMessage{}, err
	}
	return msg, nil
}

func writeFrame(w io.Writer, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
