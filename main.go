package main

import "loadtest/cmd"

func main() {
	cmd.Execute()
}
