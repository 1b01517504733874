package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetcore/dispatchd/config"
	"github.com/fleetcore/dispatchd/core/forecast"
	coregeo "github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/model"
	"github.com/fleetcore/dispatchd/core/planner"
	infrageo "github.com/fleetcore/dispatchd/infra/geo"
	"github.com/fleetcore/dispatchd/infra/logger"
)

var problemPath string

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a routing problem from a JSON file and print the plan",
	RunE:  solveOffline,
}

func init() {
	solveCmd.Flags().StringVarP(&problemPath, "problem", "p", "problem.json", "problem file with vehicles and stops")
	rootCmd.AddCommand(solveCmd)
}

type problemFile struct {
	Vehicles []model.Vehicle `json:"vehicles"`
	Stops    []model.Stop    `json:"stops"`
}

func solveOffline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := os.ReadFile(problemPath)
	if err != nil {
		return fmt.Errorf("read problem: %w", err)
	}
	var problem problemFile
	if err := json.Unmarshal(data, &problem); err != nil {
		return fmt.Errorf("decode problem: %w", err)
	}

	logg := logger.New("solve-command")
	fallback := coregeo.NewGreatCircle(cfg.Geo.SpeedKmh)
	var provider coregeo.Provider = fallback
	if cfg.Geo.Mode == "http" {
		provider = infrageo.NewHTTPMatrixProvider(cfg.Geo.HTTP)
	}
	matrix := coregeo.NewMatrixBuilder(provider, coregeo.NewPairCache(coregeo.DefaultBucket), fallback, logg)

	builder := planner.NewBuilder(matrix, forecast.Nop{}, logg)
	m, err := builder.Build(ctx, problem.Vehicles, problem.Stops, 0, time.Now())
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	solver := planner.NewSolver(cfg.Planner, logg)
	plan := solver.Solve(ctx, m, time.Duration(cfg.Planner.TimeBudgetMS)*time.Millisecond)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
