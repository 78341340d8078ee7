package main

import (
	"quizagent/cmd/quizagent/commands"
	"quizagent/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
