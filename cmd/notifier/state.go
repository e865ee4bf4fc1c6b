package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"juiceWatch/internal/config"
	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/storage/postgres"
)

func runState(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if len(cfg.Streams) == 0 {
		return fmt.Errorf("at least one stream is required")
	}

	ctx := context.Background()

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = openPostgres(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
	}

	marks, err := watermarkStore(cfg, pg).Load(ctx)
	if err != nil {
		return err
	}

	out, err := jsoncodec.MarshalIndent(marks, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
