package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/paddockai/apex/config"
	srv "github.com/paddockai/apex/internal/server"
	"github.com/paddockai/apex/internal/store"
)

func seedCMD() *cobra.Command {
	var cfgPath string
	var seed = &cobra.Command{
		Use:   "seed",
		Short: "Load default personas, facts and news into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.PostgresDSN()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			return srv.Seed(ctx, st, log.New(os.Stdout, "", log.LstdFlags))
		},
	}
	seed.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return seed
}
