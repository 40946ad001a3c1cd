package control

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/lifecycle"
	"github.com/c360/semstreams-fix/metric"
)

// Response statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Operations, also the endpoint names.
const (
	OpStart = "start"
	OpStop  = "stop"
)

// Defaults for Config.
const (
	DefaultName    = "semstreams-fix-control"
	DefaultVersion = "1.0.0"
	DefaultTimeout = 30 * time.Second
)

// CodeInternal is the micro error code for unexpected failures.
const CodeInternal = "500"

// Controller is the part of lifecycle.Controller exposed over NATS.
type Controller interface {
	Start(ctx context.Context, stopAfter int) error
	Stop(ctx context.Context) error
}

// StartRequest is the body of a start request. An empty body means zero.
type StartRequest struct {
	StopAfter int `json:"stop_after"`
}

// Response answers both operations.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Config names the service and its subjects.
type Config struct {
	Name    string
	Version string
	// Prefix is the endpoint group; endpoints are <prefix>.start and <prefix>.stop.
	Prefix string
	// Timeout bounds one start or stop.
	Timeout time.Duration
}

// Service exposes Start and Stop as a NATS micro service.
type Service struct {
	cfg     Config
	ctl     Controller
	metrics *metric.Metrics
	logger  *slog.Logger

	mu  sync.Mutex
	svc micro.Service
}

// NewService creates a control service for ctl. metrics may be nil.
func NewService(cfg Config, ctl Controller, metrics *metric.Metrics, logger *slog.Logger) *Service {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		ctl:     ctl,
		metrics: metrics,
		logger:  logger.With("component", "control"),
	}
}

// Run registers the service on nc.
func (s *Service) Run(nc *nats.Conn) error {
	if nc == nil {
		return errors.WrapFatal(errors.ErrNoConnection, "Service", "Run", "register control service")
	}
	if s.cfg.Prefix == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Service", "Run", "control subject prefix")
	}

	svc, err := micro.AddService(nc, micro.Config{
		Name:        s.cfg.Name,
		Version:     s.cfg.Version,
		Description: "Start and stop FIX sessions",
	})
	if err != nil {
		return errors.WrapFatal(err, "Service", "Run", "add micro service")
	}

	group := svc.AddGroup(s.cfg.Prefix)
	if err := group.AddEndpoint(OpStart, s.handler(OpStart)); err != nil {
		_ = svc.Stop()
		return errors.WrapFatal(err, "Service", "Run", "add start endpoint")
	}
	if err := group.AddEndpoint(OpStop, s.handler(OpStop)); err != nil {
		_ = svc.Stop()
		return errors.WrapFatal(err, "Service", "Run", "add stop endpoint")
	}

	s.svc = svc
	s.logger.Info("Control service registered",
		"name", s.cfg.Name, "start", s.Subject(OpStart), "stop", s.Subject(OpStop))
	return nil
}

// Subject returns the request subject for op.
func (s *Service) Subject(op string) string {
	return s.cfg.Prefix + "." + op
}

// Stop deregisters the service. Stopping a service that never ran is a no-op.
func (s *Service) Stop() error {
	if s.svc == nil {
		return nil
	}
	return s.svc.Stop()
}

func (s *Service) handler(op string) micro.Handler {
	return micro.HandlerFunc(func(req micro.Request) {
		resp, err := s.Handle(op, req.Data())
		if err != nil {
			s.logger.Error("Control request failed", "operation", op, "error", err)
			s.record(op, "error")
			if rerr := req.Error(CodeInternal, err.Error(), nil); rerr != nil {
				s.logger.Error("Failed to send control error", "operation", op, "error", rerr)
			}
			return
		}
		s.record(op, resp.Status)
		if rerr := req.RespondJSON(resp); rerr != nil {
			s.logger.Error("Failed to send control response", "operation", op, "error", rerr)
		}
	})
}

// Handle runs one request. An error means an unexpected failure and becomes
// an internal error reply; expected outcomes are FAILURE responses.
func (s *Service) Handle(op string, data []byte) (resp Response, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", op, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	switch op {
	case OpStart:
		return s.start(ctx, data)
	case OpStop:
		return s.stop(ctx)
	default:
		return Response{}, fmt.Errorf("unknown operation %q", op)
	}
}

func (s *Service) start(ctx context.Context, data []byte) (Response, error) {
	var req StartRequest
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return Response{}, errors.WrapInvalid(err, "Service", "start", "decode start request")
		}
	}
	if req.StopAfter < 0 {
		return failure("stop_after must be non-negative"), nil
	}

	err := s.ctl.Start(ctx, req.StopAfter)
	switch {
	case err == nil && req.StopAfter > 0:
		return success(fmt.Sprintf("Started with scheduled stop after %d seconds", req.StopAfter)), nil
	case err == nil:
		return success("Successfully started"), nil
	case stderrors.Is(err, lifecycle.ErrAlreadyRunning):
		return failure("Already running"), nil
	default:
		return Response{}, err
	}
}

func (s *Service) stop(ctx context.Context) (Response, error) {
	err := s.ctl.Stop(ctx)
	switch {
	case err == nil:
		return success("Successfully stopped"), nil
	case stderrors.Is(err, lifecycle.ErrAlreadyStopped):
		return failure("Already stopped"), nil
	default:
		return Response{}, err
	}
}

func (s *Service) record(op, status string) {
	if s.metrics != nil {
		s.metrics.RecordControl(op, strings.ToLower(status))
	}
}

func success(msg string) Response { return Response{Status: StatusSuccess, Message: msg} }
func failure(msg string) Response { return Response{Status: StatusFailure, Message: msg} }
