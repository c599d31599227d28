package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/lvctl/internal/observability"
	"github.com/danmuck/lvctl/internal/stubhost"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("lvstub")
	configPath := flag.String("config", "", "path to lvstub TOML config")
	flag.Parse()

	cfg := stubhost.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadStubConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lvstub: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded lvstub config")
	}

	srv := stubhost.New(cfg)
	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "lvstub: %v\n", err)
		os.Exit(1)
	}
}
