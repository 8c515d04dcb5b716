package main

import (
	"liquidation-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
