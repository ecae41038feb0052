package main

import "botqueue/cmd"

func main() {
	cmd.Run()
}
