package main

import "github.com/RyanBlaney/hls-fetch/cmd"

func main() {
	cmd.Execute()
}
