package main

import "github.com/nsxzhou1114/sighting-api/cmd"

func main() {
	cmd.Execute()
}
