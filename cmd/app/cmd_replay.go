package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"FinProfile/internal/repository"
	"FinProfile/internal/services/profile"
	"FinProfile/internal/usecase"
	"FinProfile/pkg/config"
	"FinProfile/pkg/logger"
	"FinProfile/pkg/metrics"
	"FinProfile/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	replayFile        string
	replaySymbol      string
	replayTickSize    float64
	replayVolumeScale float64
	replayProfile     bool
)

// replayCmd feeds a CSV of trades through a single engine offline.
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a CSV of trades through the profile engine",
	Long: `Replay timestamp,price,volume rows through one engine and print the final
snapshot as JSON. Signals are written to the log.

Examples:
  finprofile replay --file spy.csv --symbol SPY
  finprofile replay --file btc.csv --symbol BTCUSDT --tick-size 0.5 --volume-scale 1000
  finprofile replay --config config/config.yaml --file es.csv --symbol ES`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&replayFile, "file", "", "CSV file to replay")
	replayCmd.Flags().StringVar(&replaySymbol, "symbol", "", "symbol the trades belong to")
	replayCmd.Flags().Float64Var(&replayTickSize, "tick-size", 0, "tick size override")
	replayCmd.Flags().Float64Var(&replayVolumeScale, "volume-scale", 1, "volume multiplier for fractional sizes")
	replayCmd.Flags().BoolVar(&replayProfile, "profile", false, "include the full price ladder in the output")
	_ = replayCmd.MarkFlagRequired("file")
	_ = replayCmd.MarkFlagRequired("symbol")
}

// staticSettings applies one engine config to every symbol.
type staticSettings struct {
	cfg   profile.Config
	scale float64
}

func (s staticSettings) ProfileFor(string) profile.Config { return s.cfg }
func (s staticSettings) VolumeScale(string) float64     { return s.scale }

func runReplay(cmd *cobra.Command, _ []string) error {
	settings, err := replaySettings(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(replayFile)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	l := logger.NewWithWriter(os.Stderr)
	symbol := util.NormalizeSymbol(replaySymbol)
	rec := metrics.NewWithRegistry(prometheus.NewRegistry())
	proc := usecase.NewTradeProcessor(settings, repository.NewLogSignalPublisher(l), nil, nil, rec, l)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() { _ = proc.Close(context.Background()) }()

	st, err := usecase.Replay(ctx, f, symbol, proc)
	if err != nil {
		return err
	}
	l.Info("replay finished",
		logger.String("symbol", symbol),
		logger.Int("rows", st.Rows),
		logger.Int("fed", st.Fed),
		logger.Int("skipped", st.Skipped))

	snap, err := proc.Snapshot(symbol, replayProfile)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func replaySettings(cmd *cobra.Command) (usecase.EngineSettings, error) {
	if cmd.Flags().Changed("config") {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		return cfg, nil
	}
	s := staticSettings{cfg: profile.DefaultConfig(), scale: replayVolumeScale}
	if replayTickSize > 0 {
		s.cfg.TickSize = replayTickSize
	}
	if s.scale <= 0 {
		s.scale = 1
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile config: %w", err)
	}
	return s, nil
}
