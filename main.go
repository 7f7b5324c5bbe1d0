package main

import "stop-importer/cmd"

func main() {
	cmd.Execute()
}
