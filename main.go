package main

import "song-fingerprint/cmd"

func main() {
	cmd.Execute()
}
