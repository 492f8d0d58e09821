// Package logger is the process-wide structured logger. Every call names the
// component that emits it; fields are attached as structured data.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Configure sets the level (debug, info, warn, error) and format (text or
// json). Unknown levels fall back to info.
func Configure(level, format string) {
	mu.Lock()
	defer mu.Unlock()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

// Logger returns the underlying logrus logger.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func entry(component string, fields map[string]interface{}) *logrus.Entry {
	e := Logger().WithField("component", component)
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

func DebugC(component, msg string) { entry(component, nil).Debug(msg) }
func InfoC(component, msg string)  { entry(component, nil).Info(msg) }
func WarnC(component, msg string)  { entry(component, nil).Warn(msg) }
func ErrorC(component, msg string) { entry(component, nil).Error(msg) }

func DebugCF(component, msg string, fields map[string]interface{}) {
	entry(component, fields).Debug(msg)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	entry(component, fields).Info(msg)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	entry(component, fields).Warn(msg)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	entry(component, fields).Error(msg)
}
