package main

import "github.com/notargets/vlmlists/cmd"

func main() {
	cmd.Execute()
}
