package main

import "factoryops/cmd"

func main() {
	cmd.Execute()
}
