// Package resp implements a RESP2 (Redis protocol) transport exposing the
// THROTTLE command, for drop-in compatibility with Redis-cell clients. The
// parser shape follows the original throttlecrab project's RESP reader
// (read a line, interpret the leading byte, recurse for bulk strings);
// this file is a from-scratch Go reimplementation of that structure, not
// a port of its code.
package resp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cellgate/cellgate/internal/obs"
	"github.com/cellgate/cellgate/pkg/cellgate"
)

var tracer = obs.Tracer("github.com/cellgate/cellgate/internal/transport/resp")

// Server is the RESP transport: one goroutine per connection, parsing
// RESP2 request arrays and replying with RESP2 frames. It holds no GCRA
// state of its own, per spec §4.4.
type Server struct {
	handle *cellgate.Handle
	logger zerolog.Logger

	addr           string
	requestTimeout time.Duration
	idleTimeout    time.Duration

	listener net.Listener
}

// Config configures a new RESP Server.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	IdleTimeout    time.Duration
}

// NewServer constructs a RESP Server bound to cfg.Addr.
func NewServer(handle *cellgate.Handle, logger zerolog.Logger, cfg Config) *Server {
	return &Server{
		handle:         handle,
		logger:         logger,
		addr:           cfg.Addr,
		requestTimeout: cfg.RequestTimeout,
		idleTimeout:    cfg.IdleTimeout,
	}
}

// ListenAndServe opens the listener and serves connections until an
// unrecoverable listener error or Shutdown closes it.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveConn(conn)
	}
}

// Shutdown closes the listener; in-flight connections are left to finish
// or hit their idle timeout naturally, matching spec §4.4's "each
// connection is independent" posture.
func (s *Server) Shutdown(_ context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	connID := uuid.NewString()
	logger := s.logger.With().Str("conn_id", connID).Logger()

	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}

		args, err := readCommand(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("resp: connection closed")
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		reply, quit := s.dispatch(args)
		if _, err := conn.Write(reply); err != nil {
			logger.Debug().Err(err).Msg("resp: write failed")
			return
		}
		if quit {
			return
		}
	}
}

func (s *Server) dispatch(args []string) (reply []byte, quit bool) {
	switch strings.ToUpper(args[0]) {
	case "PING":
		return encodeSimpleString("PONG"), false
	case "QUIT":
		return encodeSimpleString("OK"), true
	case "THROTTLE":
		return s.handleThrottle(args), false
	default:
		return encodeError("ERR unknown command"), false
	}
}

func (s *Server) handleThrottle(args []string) []byte {
	_, parseSpan := tracer.Start(context.Background(), "resp.parse")
	// THROTTLE key max_burst count_per_period period [quantity]
	if len(args) < 5 || len(args) > 6 {
		parseSpan.End()
		return encodeError("ERR wrong number of arguments")
	}

	key := args[1]
	maxBurst, err1 := parseInt(args[2])
	count, err2 := parseInt(args[3])
	period, err3 := parseInt(args[4])
	quantity := int64(1)
	var err4 error
	if len(args) == 6 {
		quantity, err4 = parseInt(args[5])
	}
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		parseSpan.End()
		return encodeError("ERR value is not an integer")
	}
	parseSpan.End()

	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	outcome, err := s.handle.Throttle(ctx, cellgate.Request{
		Key: key,
		Policy: cellgate.Policy{
			MaxBurst:       maxBurst,
			CountPerPeriod: count,
			PeriodSeconds:  period,
		},
		Quantity:  quantity,
		Transport: "resp",
	})
	if err != nil {
		return encodeDecisionError(err)
	}

	allowed := 0
	if outcome.Allowed {
		allowed = 1
	}
	// Field order per spec §6.3: [allowed, limit, remaining, reset_after,
	// retry_after] — reset before retry, matching Redis-cell exactly.
	return encodeIntArray(
		int64(allowed),
		outcome.Limit,
		outcome.Remaining,
		outcome.ResetAfterS,
		outcome.RetryAfterS,
	)
}

func encodeDecisionError(err error) []byte {
	switch {
	case errors.Is(err, cellgate.ErrInvalidParameter):
		return encodeError("ERR invalid parameter: " + err.Error())
	case errors.Is(err, cellgate.ErrOverflow):
		return encodeError("ERR overflow: " + err.Error())
	case errors.Is(err, cellgate.ErrBackpressure):
		return encodeError("ERR backpressure")
	case errors.Is(err, cellgate.ErrUnavailable):
		return encodeError("ERR unavailable")
	default:
		return encodeError("ERR internal error")
	}
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// readCommand reads one RESP2 request array of bulk strings:
// "*N\r\n$len\r\nbulk\r\n"...
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != '*' {
		return nil, fmt.Errorf("resp: expected array, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("resp: bad array length %q", line)
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		bulk, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		args = append(args, bulk)
	}
	return args, nil
}

func readBulkString(r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", err
	}
	if len(line) == 0 || line[0] != '$' {
		return "", fmt.Errorf("resp: expected bulk string, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return "", fmt.Errorf("resp: bad bulk length %q", line)
	}

	buf := make([]byte, n+2) // payload + trailing CRLF
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func encodeSimpleString(s string) []byte {
	return []byte("+" + s + "\r\n")
}

func encodeError(msg string) []byte {
	return []byte("-" + msg + "\r\n")
}

func encodeInt(n int64) []byte {
	return []byte(":" + strconv.FormatInt(n, 10) + "\r\n")
}

func encodeIntArray(nums ...int64) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(nums))
	for _, n := range nums {
		b.Write(encodeInt(n))
	}
	return []byte(b.String())
}
