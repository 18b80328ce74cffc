package main

import "livesync/cmd"

func main() {
	cmd.Execute()
}
