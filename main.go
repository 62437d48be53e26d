package main

import "github.com/ValentinKolb/dOrder/cmd"

func main() {
	cmd.Execute()
}
