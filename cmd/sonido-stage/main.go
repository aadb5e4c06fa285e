package main

import "github.com/RyanBlaney/sonido-stage/cmd"

func main() {
	cmd.Execute()
}
