package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gotest.tools/gotestfail/cmd"
	"gotest.tools/gotestfail/cmd/tool"
	"gotest.tools/gotestfail/log"
)

var version = "dev"

func main() {
	err := route(os.Args)
	switch {
	case err == nil:
		return
	case cmd.IsExitCoder(err):
		// go test already reported the failure, exit with the same status
		os.Exit(cmd.ExitCodeWithDefault(err))
	default:
		log.Error(err.Error())
		os.Exit(3)
	}
}

func route(args []string) error {
	name := filepath.Base(args[0])
	next, rest := cmd.Next(args[1:])
	switch next {
	case "tool":
		return tool.Run(name+" "+next, rest)
	case "version":
		// the bare version is compared by the install tool
		_, err := fmt.Println(version)
		return err
	default:
		return cmd.Run(name, version, args[1:])
	}
}
