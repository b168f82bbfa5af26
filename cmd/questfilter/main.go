package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"questFilter/internal/adapter"
	"questFilter/internal/adapter/treasure"
	"questFilter/internal/filter"
	"questFilter/internal/matcher"
)

func main() {
	root := &cobra.Command{
		Use:          "questfilter",
		Short:        "Compile quest filters and match transactions against them",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newMatchCmd(),
		newCompileCmd(),
		newScanCmd(),
		newFetchCmd(),
		newChainsCmd(),
		newTokensCmd(),
		newMigrateCmd(),
		newMatchedCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func configFile(cmd *cobra.Command) string {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func newRegistry() (*adapter.Registry, error) {
	return adapter.NewRegistry(treasure.New())
}

// loadPrograms compiles every descriptor file. The action name is the file's base name.
func loadPrograms(paths []string) ([]*matcher.Program, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one descriptor is required")
	}
	programs := make([]*matcher.Program, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read descriptor: %w", err)
		}
		d, err := filter.UnmarshalDescriptor(data)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p, err := matcher.Compile(name, d)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", path, err)
		}
		programs = append(programs, p)
	}
	return programs, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing; "-" is stdout.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return file, nil
}

// openInput opens path for reading; "-" is stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return file, nil
}
