package notify

import (
	"log/slog"
	"time"
)

// Level categorizes a user-facing notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one transient user-facing message. Every caught error
// produces exactly one of these; none are retried.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier delivers notifications to whatever surface is attached.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Slog is the fallback Notifier: notifications land in the log at the level
// matching their category.
type Slog struct{}

func (Slog) Notify(n Notification) {
	attrs := []any{
		slog.String("title", n.Title),
		slog.String("message", n.Message),
	}
	switch n.Level {
	case LevelError:
		slog.Error("[Notify] "+n.Title, attrs...)
	case LevelWarning:
		slog.Warn("[Notify] "+n.Title, attrs...)
	default:
		slog.Info("[Notify] "+n.Title, attrs...)
	}
}

func Success(title, message string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Message: message, At: time.Now()}
}

func Info(title, message string) Notification {
	return Notification{Level: LevelInfo, Title: title, Message: message, At: time.Now()}
}

func Warning(title, message string) Notification {
	return Notification{Level: LevelWarning, Title: title, Message: message, At: time.Now()}
}

func Error(title, message string) Notification {
	return Notification{Level: LevelError, Title: title, Message: message, At: time.Now()}
}
