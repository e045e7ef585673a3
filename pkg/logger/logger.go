// Package logger provides context-aware structured logging on top of logrus.
// Loggers travel in the context so that fields attached at the edge of a
// request (skill name, agent and task identity) show up on every line logged
// further down the call chain.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

var (
	// G is shorthand for GetLogger.
	G = GetLogger
	// L is the process-wide entry used when the context carries no logger.
	L = logrus.NewEntry(newLogger())
)

type loggerKey struct{}

// WithLogger attaches entry to ctx so that GetLogger returns it.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry.WithContext(ctx))
}

// GetLogger returns the logger carried by ctx, falling back to L.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

// WithFields derives a context whose logger carries the extra fields.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, G(ctx).WithFields(fields))
}

// WithIdentity derives a context whose logger is tagged with the agent, task
// and, when present, campaign of a skill invocation.
func WithIdentity(ctx context.Context, id skilltypes.Identity) context.Context {
	fields := logrus.Fields{
		"agent_id": id.AgentID,
		"task_id":  id.TaskID,
	}
	if campaign := id.Campaign(); campaign != "" {
		fields["campaign_id"] = campaign
	}
	return WithFields(ctx, fields)
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	setLoggerFormat(l, "fmt")
	return l
}

func setLoggerFormat(l *logrus.Logger, format string) {
	switch format {
	case "json":
		l.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		l.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	}
}

// SetLogLevel sets the level of the global logger.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L.Logger.SetLevel(lvl)
	return nil
}

// SetLogFormat switches the global logger between "fmt" text and "json".
func SetLogFormat(format string) {
	setLoggerFormat(L.Logger, format)
}

// SetLogOutput redirects the global logger.
func SetLogOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}
