package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/paddockai/apex/config"
	srv "github.com/paddockai/apex/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var autoStart bool
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the debate platform API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			logger := log.New(os.Stdout, "", log.LstdFlags)
			server, err := srv.Build(cfg, logger)
			if err != nil {
				return err
			}
			if autoStart || cfg.Loop.AutoStart {
				server.Loop.Start()
			}
			return server.Run()
		},
	}
	serve.Flags().BoolVar(&autoStart, "loop", false, "start the autonomous debate loop immediately")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
