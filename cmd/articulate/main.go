package main

import (
	"autoclass-backend/cmd/articulate/commands"
	"autoclass-backend/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
