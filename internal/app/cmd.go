package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード。
	CommandServe Command = "serve"
	// CommandMigrate はDBマイグレーション実行モード。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックモード（Docker HEALTHCHECK用）。
	CommandHealthcheck Command = "healthcheck"
	// CommandCreateAdmin は初期管理者の作成モード。
	CommandCreateAdmin Command = "create-admin"
)

// ParseCommand はコマンドライン引数から起動モードを解析する。
// 引数が空または不明なコマンドの場合はserveモードをデフォルトとする。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandServe:
		return CommandServe
	case CommandMigrate:
		return CommandMigrate
	case CommandHealthcheck:
		return CommandHealthcheck
	case CommandCreateAdmin:
		return CommandCreateAdmin
	default:
		return CommandServe
	}
}
