package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslamon/teslamon/config"
	"github.com/teslamon/teslamon/infra/logger"
	"github.com/teslamon/teslamon/infra/tesla"
)

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "Vehicle related commands",
}

var vehiclesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the account's vehicles",
	RunE:  runVehiclesLs,
}

func init() {
	vehiclesCmd.AddCommand(vehiclesLsCmd)
	rootCmd.AddCommand(vehiclesCmd)
}

func runVehiclesLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := tesla.Authenticate(cfg.Tesla, logger.NopLogger{})
	if err != nil {
		return fmt.Errorf("tesla client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	vehicles, err := client.FetchVehicles(ctx)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", v.DisplayName, v.VIN, v.State)
	}
	return nil
}
