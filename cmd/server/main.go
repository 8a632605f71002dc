package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		var cfgErr *app.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Printf("configuration error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(2)
	}
	defer a.Close()

	a.Start()

	fmt.Printf("server listening on :%s\n", a.Cfg.Port)
	if err := a.Run(":" + a.Cfg.Port); err != nil {
		a.Log.Warn("server stopped", "error", err)
	}
}
