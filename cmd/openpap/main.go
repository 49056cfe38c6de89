package main

import "github.com/openpap/openpap/cmd/openpap/cmd"

func main() {
	cmd.Execute()
}
