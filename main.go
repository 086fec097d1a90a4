package main

import "github.com/qobs-build/mosaicmk/cmd"

func main() {
	cmd.Execute()
}
