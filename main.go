package main

import (
	"os"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
