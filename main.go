package main

import "github.com/atikulmunna/logagent/internal/cmd"

func main() {
	cmd.Execute()
}
