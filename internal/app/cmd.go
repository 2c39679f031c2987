package app

// Command はstockflowバイナリのサブコマンドを表す。
type Command string

const (
	// CommandServe はAPIサーバー（OAuthフロー、トークン検証、Items API）を起動する。
	CommandServe Command = "serve"
	// CommandWeb はダッシュボードを配信するWebフロントエンドを起動する。
	CommandWeb Command = "web"
	// CommandWorker は期限切れトークンの定期削除を実行する。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーママイグレーションを適用する。"migrate down N" でN段巻き戻す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルのAPIサーバーの/healthを確認する。
	// シェルのないdistrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

// commands は引数の先頭要素とサブコマンドの対応。
var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWeb):         CommandWeb,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭要素からサブコマンドを決定する。
// 引数なし、または未知のサブコマンドはserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
