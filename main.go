package main

import "github.com/hurou927/kin-subset/cmd"

func main() {
	cmd.Execute()
}
