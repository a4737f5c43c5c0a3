package main

import "github.com/kiranaconnect/kirana/cmd"

func main() {
	cmd.Execute()
}
