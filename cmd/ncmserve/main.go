package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	ncmunlock "github.com/zetetos/ncm-unlock"
	"github.com/zetetos/ncm-unlock/internal/config"
	"github.com/zetetos/ncm-unlock/internal/httpapi"
	"github.com/zetetos/ncm-unlock/internal/logging"
)

type serveConfig struct {
	Listen       string   `koanf:"listen"`
	MaxUpload    int64    `koanf:"max-upload"`
	AllowOrigins []string `koanf:"allow-origin"`
	LogLevel     string   `koanf:"log-level"`
}

var defaults = map[string]any{
	"listen":       "127.0.0.1:8080",
	"max-upload":   httpapi.DefaultMaxUpload,
	"allow-origin": []string{},
	"log-level":    "info",
}

func main() {
	flags := pflag.NewFlagSet("ncmserve", pflag.ContinueOnError)
	flags.String("listen", "127.0.0.1:8080", "Address to listen on")
	flags.Int64("max-upload", httpapi.DefaultMaxUpload, "Largest accepted upload in bytes")
	flags.StringSlice("allow-origin", nil, "CORS origin to allow, repeatable (default: any)")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error, off")
	flags.StringP(config.FileFlag, "c", "", "YAML file with flag defaults")

	err := flags.Parse(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	var cfg serveConfig

	err = config.Load(flags, defaults, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.LogLevel, nil)

	decoder, err := ncmunlock.New(ncmunlock.Options{Logger: &log})
	if err != nil {
		log.Fatal().Err(err).Msg("creating decoder")
	}

	gin.SetMode(gin.ReleaseMode)

	router := httpapi.NewRouter(decoder, httpapi.Options{
		MaxUpload:    cfg.MaxUpload,
		AllowOrigins: cfg.AllowOrigins,
		Logger:       log,
	})

	log.Info().Str("listen", cfg.Listen).Int64("max_upload", cfg.MaxUpload).Msg("serving")

	err = router.Run(cfg.Listen)
	if err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
