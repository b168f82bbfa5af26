package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"questFilter/internal/adapter"
	"questFilter/internal/config"
	"questFilter/internal/filter"
)

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Build a descriptor through an adapter and print its compact JSON",
		RunE:  runCompile,
	}

	cmd.Flags().String("adapter", "", "adapter name (see chains/tokens)")
	cmd.Flags().String("action", "", "action to build (swap, mint)")
	cmd.Flags().String("params", "", "action params YAML file")
	cmd.Flags().String("out", "-", "output descriptor JSON, - for stdout")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runCompile(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadCompile(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := newRegistry()
	if err != nil {
		return err
	}
	a, ok := registry.Get(cfg.Adapter)
	if !ok {
		return fmt.Errorf("unknown adapter %q (known: %v)", cfg.Adapter, registry.Names())
	}
	if cfg.Params == "" {
		return fmt.Errorf("params file is required")
	}

	data, err := os.ReadFile(cfg.Params)
	if err != nil {
		return fmt.Errorf("read params: %w", err)
	}
	file, err := adapter.ParseActionFile(data)
	if err != nil {
		return err
	}

	var swap adapter.SwapParams
	var mint adapter.MintParams
	switch cfg.Action {
	case adapter.ActionSwap:
		swap, err = file.SwapParams()
	case adapter.ActionMint:
		mint, err = file.MintParams()
	}
	if err != nil {
		return err
	}

	d, err := adapter.Build(a, cfg.Action, swap, mint)
	if err != nil {
		return err
	}
	out, err := filter.MarshalDescriptor(d)
	if err != nil {
		return err
	}
	id, err := d.ID()
	if err != nil {
		return err
	}

	w, err := openOutput(cfg.Out)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := w.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}

	logger.Info("descriptor compiled",
		zap.String("adapter", a.Name()),
		zap.String("action", cfg.Action),
		zap.String("descriptor_id", id),
		zap.Uint64("chain_id", d.ChainID),
		zap.String("contract", d.Contract.Hex()),
	)
	return nil
}
