package main

import (
	"context"
	"fmt"
	"os"

	"screwdata/cmd/screwdata/commands"
	"screwdata/lib/telemetry"
)

func main() {
	ctx := context.Background()

	err := telemetry.SetupFromEnv(ctx, "screwdata")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer telemetry.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
