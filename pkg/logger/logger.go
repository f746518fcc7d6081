package logger

import "sync"

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger holds multiple logging backends and dispatches log calls to all of them.
type Logger struct {
	instances []LoggerInstance
	fields    []any
}

var (
	mu        sync.RWMutex
	singleton *Logger
)

// Init initializes the global logger with one or more logging backends.
// Logging calls made before Init are dropped.
func Init(instances ...LoggerInstance) {
	mu.Lock()
	defer mu.Unlock()
	singleton = &Logger{instances: instances}
}

func get() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return singleton
}

// With returns a logger that prepends keyvals to every call. It is used to
// carry correlation fields such as a run id through one operation.
func With(keyvals ...any) *Logger {
	l := get()
	if l == nil {
		return &Logger{}
	}
	fields := make([]any, 0, len(l.fields)+len(keyvals))
	fields = append(fields, l.fields...)
	fields = append(fields, keyvals...)
	return &Logger{instances: l.instances, fields: fields}
}

func (l *Logger) each(keyvals []any, fn func(LoggerInstance, []any)) {
	if l == nil {
		return
	}
	kv := keyvals
	if len(l.fields) > 0 {
		kv = append(append([]any{}, l.fields...), keyvals...)
	}
	for _, instance := range l.instances {
		fn(instance, kv)
	}
}

func (l *Logger) Debug(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Debug(message, kv...) })
}

func (l *Logger) Info(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Info(message, kv...) })
}

func (l *Logger) Warn(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Warn(message, kv...) })
}

func (l *Logger) Error(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Error(message, kv...) })
}

func (l *Logger) Fatal(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Fatal(message, kv...) })
}

// Debug writes a message at DEBUG level to all configured backends.
func Debug(message string, keyvals ...any) { get().Debug(message, keyvals...) }

// Info writes a message at INFO level to all configured backends.
func Info(message string, keyvals ...any) { get().Info(message, keyvals...) }

// Warn writes a message at WARN level to all configured backends.
func Warn(message string, keyvals ...any) { get().Warn(message, keyvals...) }

// Error writes a message at ERROR level to all configured backends.
func Error(message string, keyvals ...any) { get().Error(message, keyvals...) }

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) { get().Fatal(message, keyvals...) }
