/*
Copyright 2026 The Kubermatic Kubernetes Platform contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format describes the encoding of the log output.
type Format string

const (
	FormatJSON    Format = "JSON"
	FormatConsole Format = "Console"
)

var availableFormats = []Format{FormatJSON, FormatConsole}

// AvailableFormats is a helper for pretty-printing the allowed values
// of the -log-format flag.
func AvailableFormats() string {
	formats := make([]string, len(availableFormats))
	for i, format := range availableFormats {
		formats[i] = string(format)
	}

	return strings.Join(formats, ", ")
}

// Logger is a package-wide logger for code that has no proper logger
// available, like helpers deep inside the reconciling logic. It is
// replaced by the configured logger early during startup.
var Logger = NewDefault().Sugar()

// Options configure the process-wide logger.
type Options struct {
	Debug  bool
	Format Format
}

func NewDefaultOptions() Options {
	return Options{
		Debug:  false,
		Format: FormatJSON,
	}
}

func (o *Options) AddFlags(fs *flag.FlagSet) {
	fs.BoolVar(&o.Debug, "log-debug", o.Debug, "Enables debug logging")
	fs.Var(&o.Format, "log-format", fmt.Sprintf("Log format, one of: %s", AvailableFormats()))
}

func (o *Options) Validate() error {
	for _, format := range availableFormats {
		if o.Format == format {
			return nil
		}
	}

	return fmt.Errorf("invalid log format %q, must be one of: %s", o.Format, AvailableFormats())
}

// String implements flag.Value.
func (f *Format) String() string {
	return string(*f)
}

// Set implements flag.Value.
func (f *Format) Set(value string) error {
	for _, format := range availableFormats {
		if strings.EqualFold(value, string(format)) {
			*f = format
			return nil
		}
	}

	return fmt.Errorf("invalid format %q, must be one of: %s", value, AvailableFormats())
}

// NewDefault creates a non-debug JSON logger.
func NewDefault() *zap.Logger {
	return New(false, FormatJSON)
}

func New(debug bool, format Format) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == FormatConsole {
		encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05"))
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	core := zapcore.NewCore(&KubeAwareEncoder{Encoder: encoder}, zapcore.AddSync(os.Stderr), level)

	return zap.New(core)
}
