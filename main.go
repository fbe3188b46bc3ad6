package main

import "github.com/kozaktomas/pose-guard/cmd"

func main() {
	cmd.Execute()
}
