package main

import (
	"context"

	"harbridge-backend/cmd/har-preview/commands"
	"harbridge-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
