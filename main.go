package main

import "github.com/lavahost/soundnode/cmd"

func main() {
	cmd.Execute()
}
