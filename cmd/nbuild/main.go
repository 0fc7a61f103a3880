package main

import "nbuild/cmd/nbuild/cmd"

func main() {
	cmd.Execute()
}
