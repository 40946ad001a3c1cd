package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/quickfixgo/quickfix"
)

// logFactory routes QuickFIX logs into slog. Messages are logged at debug,
// session events at info.
type logFactory struct {
	logger *slog.Logger
}

// NewLogFactory returns a quickfix.LogFactory writing to logger.
func NewLogFactory(logger *slog.Logger) quickfix.LogFactory {
	return &logFactory{logger: logger.With("component", "quickfix")}
}

func (f *logFactory) Create() (quickfix.Log, error) {
	return &slogLog{logger: f.logger}, nil
}

func (f *logFactory) CreateSessionLog(id quickfix.SessionID) (quickfix.Log, error) {
	return &slogLog{logger: f.logger.With("session", id.String())}, nil
}

type slogLog struct {
	logger *slog.Logger
}

// readable replaces the SOH delimiter so messages stay on one log line.
func readable(b []byte) string {
	return strings.ReplaceAll(string(b), "\x01", "|")
}

func (l *slogLog) OnIncoming(b []byte) {
	l.logger.Debug("FIX incoming", "message", readable(b))
}

func (l *slogLog) OnOutgoing(b []byte) {
	l.logger.Debug("FIX outgoing", "message", readable(b))
}

func (l *slogLog) OnEvent(s string) {
	l.logger.Info(s)
}

func (l *slogLog) OnEventf(format string, a ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, a...))
}
