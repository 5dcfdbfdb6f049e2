package app

import "strconv"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandMigrateDown は直近のマイグレーションを巻き戻すことを示す。
	// "migrate down [steps]" で指定する。
	CommandMigrateDown Command = "migrate-down"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		if len(args) > 1 && args[1] == "down" {
			return CommandMigrateDown
		}
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// RollbackSteps は "migrate down [steps]" の巻き戻し件数を返す。
// 省略時や不正な値の場合は1。
func RollbackSteps(args []string) int {
	if len(args) < 3 {
		return 1
	}
	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
