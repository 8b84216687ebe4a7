// Copyright 2023 Kami
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package applog builds the process logger: a rotating file sink plus a
// colored console sink combined the way the source's AppContext wires
// spdlog's daily_file_sink_mt and stdout_color_sink_mt into one
// async_logger.
package applog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the logger's sinks and verbosity.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// FilePath is the rotating log file path. Empty disables the file sink.
	FilePath string
	// MaxSizeMB, MaxBackups and MaxAgeDays mirror lumberjack.Logger's
	// fields and approximate the source's daily-rotation policy.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (o Options) level() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// New builds a *zap.Logger per opts. Both sinks write synchronously, so an
// error entry reaches them as soon as it is logged, which covers what the
// source gets from flush_on(spdlog::level::err).
func New(opts Options) *zap.Logger {
	lvl := opts.level()
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEnc := zapcore.NewConsoleEncoder(consoleCfg)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), lvl),
	}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 30),
			MaxAge:     nonZero(opts.MaxAgeDays, 30),
		}
		fileEnc := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rotator), lvl))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller(), zap.OnFatal(zapcore.WriteThenPanic))
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
