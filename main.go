package main

import (
	"context"
	"os"

	"github.com/allfeat/massload/cli"
	"github.com/allfeat/massload/pkg/logger"
)

func main() {
	if err := cli.RootCmd().ExecuteContext(context.Background()); err != nil {
		logger.GetDefault().Error("command failed", "error", err)
		os.Exit(1)
	}
}
