package main

import "github.com/sorreltree/datalocker/cmd"

func main() {
	cmd.Execute()
}
