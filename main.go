package main

import (
	"starmake/cmd"
)

func main() {
	cmd.Execute()
}
