// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command kevactl is the local command-line front end for Keva's
// clipboard and snippet store.
//
// Usage:
//
//	kevactl set <key> <text>
//	kevactl get <key>
//	kevactl rm <key>
//	kevactl trash <key>
//	kevactl restore <key>
//	kevactl purge <key>
//	kevactl rename <src> <dst>
//	kevactl list [--trash] [prefix]
//	kevactl search <query>
//	kevactl gc
//	kevactl watch-dir <dir>
//	kevactl watch-clip <key>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	keva "github.com/ik1ne/keva-sub000"
)

var (
	basePathFlag string
	traceFlag    bool

	core   *keva.Core
	tracer trace.Tracer

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	keyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// isInteractive reports whether stdout is attached to a real terminal,
// used to decide whether styled output is worth emitting at all.
func isInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func styled(s lipgloss.Style, text string) string {
	if !isInteractive() {
		return text
	}
	return s.Render(text)
}

func fatalf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, styled(errStyle, fmt.Sprintf(format, args...)))
	os.Exit(1)
}

func defaultBasePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.keva"
	}
	return ".keva"
}

func setupTracing() func() {
	if !traceFlag {
		tracer = otel.Tracer("kevactl")
		return func() {}
	}
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		fatalf("keva: init trace exporter: %v", err)
	}
	res, err := resource.New(cmdContext(), resource.WithAttributes(
		semconv.ServiceName("kevactl"),
	))
	if err != nil {
		res = resource.Default()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer("kevactl")
	return func() {
		if err := tp.Shutdown(cmdContext()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:           "kevactl",
	Short:         "Local clipboard and snippet store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --trace is only known once cobra has parsed the flags, after
		// main's own setupTracing call has already run.
		if traceFlag {
			cobra.OnFinalize(setupTracing())
		}
		cfg := keva.DefaultConfig(basePathFlag)
		c, err := keva.Open(cfg,
			keva.WithLogger(slog.Default()),
			keva.WithTracer(tracer),
		)
		if err != nil {
			return fmt.Errorf("open keva store at %s: %w", basePathFlag, err)
		}
		core = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if core == nil {
			return nil
		}
		return core.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&basePathFlag, "base-path", defaultBasePath(), "directory Keva stores its data under")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "emit OpenTelemetry spans to stdout")

	rootCmd.AddCommand(setCmd, getCmd, rmCmd, addFilesCmd, rmFileCmd, catCmd)
	rootCmd.AddCommand(trashCmd, restoreCmd, purgeCmd, renameCmd)
	rootCmd.AddCommand(listCmd, searchCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(watchDirCmd, watchClipCmd)
}

func main() {
	shutdownTracing := setupTracing()
	defer shutdownTracing()

	if err := rootCmd.Execute(); err != nil {
		fatalf("%v", err)
	}
}
