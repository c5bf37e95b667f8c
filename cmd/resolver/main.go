package main

import (
	"os"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
