package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/markerctl/internal/logging"
	"github.com/danmuck/markerctl/internal/markerd"
)

func main() {
	configPath := flag.String("config", "", "path to markerctl config.toml")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := markerd.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "markerctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := markerd.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "markerctl: %v\n", err)
		os.Exit(1)
	}
}
