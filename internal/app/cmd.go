package app

import "strings"

// Command はlifemanagerのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"       // APIサーバー（既定）
	CommandMigrate     Command = "migrate"     // スキーマを最新にして終了
	CommandHealthcheck Command = "healthcheck" // distrolessイメージのHEALTHCHECK用
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭をサブコマンドとして解釈する。
// 2番目以降の引数は無視し、空または不明な場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	cmd, _ := lookupCommand(args)
	return cmd
}

// lookupCommand はサブコマンドと、それが既知の名前だったかを返す。
func lookupCommand(args []string) (Command, bool) {
	if len(args) == 0 {
		return CommandServe, true
	}
	cmd, ok := knownCommands[strings.TrimSpace(args[0])]
	if !ok {
		return CommandServe, false
	}
	return cmd, true
}
