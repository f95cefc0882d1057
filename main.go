package main

import (
	"github.com/SportiQue-XRPL/XRP-LEDGER/cmd"
)

func main() {
	cmd.Execute()
}
