package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/bird-zoo/internal/gateway"
)

// StatusProvider provides adapter connection status.
type StatusProvider interface {
	StatusAll() []gateway.AdapterStatus
}

// RegisterBuiltins registers /help and /status.
func RegisterBuiltins(reg *Registry, status StatusProvider) {
	reg.Register(helpCommand(reg))
	if status != nil {
		reg.Register(statusCommand(status))
	}
}

// ---------------------------------------------------------------------------
// /help
// ---------------------------------------------------------------------------

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "コマンド一覧を表示",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			cmds := reg.List()
			var b strings.Builder
			b.WriteString("使えるコマンド:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  /%s — %s", c.Name, c.Description)
				if c.Admin {
					b.WriteString(" (管理者)")
				}
				b.WriteByte('\n')
				if c.Usage != "" {
					fmt.Fprintf(&b, "    使い方: %s\n", c.Usage)
				}
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /status
// ---------------------------------------------------------------------------

func statusCommand(provider StatusProvider) *Command {
	return &Command{
		Name:        "status",
		Description: "プラットフォーム接続状況を表示",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			adapters := provider.StatusAll()
			if len(adapters) == 0 {
				return &CommandResult{Content: "接続先が設定されていません。"}, nil
			}
			var b strings.Builder
			b.WriteString("接続状況:\n")
			for _, a := range adapters {
				state := "未接続"
				if a.Connected {
					state = "接続中"
				}
				fmt.Fprintf(&b, "  %s: %s", a.Platform, state)
				if a.Error != "" {
					fmt.Fprintf(&b, " (%s)", a.Error)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String(), Data: adapters}, nil
		},
	}
}
