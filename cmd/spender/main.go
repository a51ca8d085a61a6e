package main

import "github.com/ZalaPanda/redmine-time-spender-sub000/cmd/spender/cmd"

func main() {
	cmd.Execute()
}
