package main

import (
	"github.com/bagasta/waha-relay/cmd"
)

func main() {
	cmd.Execute()
}
