// Package petitions wires configuration and startup for the petitions command.
package petitions

import (
	"context"
	"flag"

	platformcmd "github.com/quorumhq/petitions/internal/platform/cmd"
	server "github.com/quorumhq/petitions/internal/services/petitions/app"
)

// Config holds petitions command configuration.
type Config struct {
	Port int `env:"PETITIONS_GRPC_PORT" envDefault:"8090"`
}

// ParseConfig loads environment defaults and parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The petitions gRPC server port")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the petitions server with telemetry configured.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServicePetitions, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
