package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Command represents a slash command.
type Command struct {
	Name        string
	Description string
	Usage       string
	// Admin commands are limited to configured admin users.
	Admin   bool
	Handler CommandHandler
}

// CommandHandler is the function signature for command execution.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error)

// CommandContext identifies who issued a command and for which zoo.
type CommandContext struct {
	Platform  string
	GuildID   string
	ChannelID string
	UserID    string
	UserName  string
}

// CommandResult holds the output of a command.
type CommandResult struct {
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	admins   map[string]bool
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = cmd
}

// SetAdmins restricts admin commands to the given user ids. With no admins
// configured every user may run them.
func (r *Registry) SetAdmins(userIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins = make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		r.admins[id] = true
	}
}

// Dispatch parses a slash command string and executes the matching handler.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (*CommandResult, error) {
	r.mu.RLock()
	// Parse: "/command_name args..."
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	parts := strings.SplitN(input, " ", 2)
	name := strings.ToLower(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	cmd, ok := r.commands[name]
	allowed := !ok || !cmd.Admin || len(r.admins) == 0 || r.admins[cc.UserID]
	suggestion := ""
	if !ok {
		suggestion = r.closestLocked(name)
	}
	r.mu.RUnlock()

	if !ok {
		msg := fmt.Sprintf("不明なコマンドです: /%s 。/help で一覧を確認できます。", name)
		if suggestion != "" {
			msg = fmt.Sprintf("不明なコマンドです: /%s 。もしかして /%s ですか？", name, suggestion)
		}
		return &CommandResult{Content: msg}, nil
	}
	if !allowed {
		return &CommandResult{Content: "このコマンドは管理者のみ実行できます。"}, nil
	}
	return cmd.Handler(ctx, args, cc)
}

// closestLocked returns the registered name nearest to name, if close enough.
func (r *Registry) closestLocked(name string) string {
	best, bestDist := "", 3
	for n := range r.commands {
		if d := levenshtein.ComputeDistance(name, n); d < bestDist || (d == bestDist && best != "" && n < best) {
			best, bestDist = n, d
		}
	}
	return best
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
