package main

import "github.com/floorheights/datamodel/cmd"

func main() {
	cmd.Execute()
}
