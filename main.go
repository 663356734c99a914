package main

import "github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/cmd"

func main() {
	cmd.Execute()
}
