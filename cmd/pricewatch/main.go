package main

import (
	"os"

	"github.com/Analogium/PriceWatch/internal"
)

func main() {
	root := newRootCmd(func(envPath string, withListeners bool) (application, error) {
		return internal.NewApp(internal.Options{EnvPath: envPath, WithListeners: withListeners})
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
