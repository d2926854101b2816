package main

import (
	"fmt"
	"os"

	"voicecmd/internal/ipc"
)

func main() {
	cmd := ipc.CmdStartCapture
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "start", "start-capture":
			cmd = ipc.CmdStartCapture
		case "stop", "stop-capture":
			cmd = ipc.CmdStopCapture
		case "quit", "shutdown":
			cmd = ipc.CmdStop
		default:
			fmt.Println("usage: voicectl [start|stop|quit]")
			return
		}
	}

	if err := ipc.SendCommand(cmd); err != nil {
		fmt.Println("voiced not running:", err)
	}
}
