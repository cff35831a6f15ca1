package main

import "github.com/ValentinKolb/dRL/cmd"

func main() {
	cmd.Execute()
}
