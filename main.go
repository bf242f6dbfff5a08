package main

import "github.com/DappAstra/DappAstra-ERC20-Generator/cmd"

func main() {
	cmd.Execute()
}
