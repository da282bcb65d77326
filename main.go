package main

import (
	"playdeck/cmd"
)

func main() {
	cmd.Execute()
}
