package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-playgate/internal/serve"
)

func init() {
	main := serve.NewCommand()

	command := &cobra.Command{
		Use:   "serve",
		Short: "serve playback gateway",
		Long:  `serve playback sessions, rewritten HLS manifests and the test player`,
		Run:   main.Run,
	}

	configs := []Config{
		main.ServerConfig,
		main.Config,
	}

	onConfigLoad = append(onConfigLoad, func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		main.Preflight()
		main.ConfigReload()
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to register serve flags")
		}
	}

	rootCmd.AddCommand(command)
}
