package main

import "github.com/OpenTraceLab/OpenTraceEM/cmd/otem/cmd"

func main() {
	cmd.Execute()
}
