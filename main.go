package main

import "github.com/engram-os/engram-os/cmd"

func main() {
	cmd.Execute()
}
