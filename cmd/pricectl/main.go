// pricectl is the operator CLI for the apartment price estimator.
//
// Usage:
//
//	pricectl estimate --city Aachen --area 100 --rooms 4 --year 2010 --flag Balcony
//	pricectl cities import --csv data/nrwCityCoordinates.csv --db data/cities.db
//	pricectl artifacts inspect --dir data
//	pricectl cache invalidate
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/apartment-estimator/backend/pkg/config"
	appLogger "github.com/apartment-estimator/backend/pkg/logger"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "pricectl",
		Usage:   "Buy & rent price estimation for apartments in North Rhine-Westphalia",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.yaml (defaults to the server's search path)",
				EnvVars: []string{"ESTIMATOR_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"ESTIMATOR_LOG_LEVEL"},
			},
		},

		Before: func(c *cli.Context) error {
			return appLogger.Init(c.String("log-level"), "console", "stderr")
		},
		After: func(c *cli.Context) error {
			appLogger.Sync()
			return nil
		},

		Commands: []*cli.Command{
			estimateCommand(),
			citiesCommand(),
			artifactsCommand(),
			cacheCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
