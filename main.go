package main

import "github.com/darmiel/insurelink/cmd"

func main() {
	cmd.Execute()
}
