package main

import "luna-backend/cmd"

func main() {
	cmd.Execute()
}
