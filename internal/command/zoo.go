package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/bird-zoo/internal/admission"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/events"
	"github.com/nidhogg/bird-zoo/internal/feeding"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Publisher delivers narration produced by a command.
type Publisher interface {
	Publish(ctx context.Context, guildID string, ev zoo.Event)
}

// SpeciesSuggester proposes catalog names close to a misspelled one.
type SpeciesSuggester interface {
	Suggest(name string, max int) []string
}

// ZooServices are the simulation components the zoo commands drive.
// Species and Publisher may be nil.
type ZooServices struct {
	Store     *zoo.Store
	Admission *admission.Controller
	Feeding   *feeding.Service
	Env       *environment.Provider
	Species   SpeciesSuggester
	Publisher Publisher
}

// RegisterZooCommands registers the bird zoo commands.
func RegisterZooCommands(reg *Registry, svc *ZooServices) {
	reg.Register(zooCommand(svc))
	reg.Register(feedCommand(svc))
	reg.Register(inviteCommand(svc))
	reg.Register(admitCommand(svc))
	reg.Register(eventsCommand(svc))
	reg.Register(weatherCommand(svc))
	reg.Register(zooCheckCommand(svc))
	reg.Register(zooRemoveCommand(svc))
	reg.Register(extendCommand(svc))
}

func (svc *ZooServices) publish(ctx context.Context, guildID string, ev zoo.Event) {
	if svc.Publisher != nil {
		svc.Publisher.Publish(ctx, guildID, ev)
	}
}

func (svc *ZooServices) suggestSpecies(name string) string {
	if svc.Species == nil {
		return ""
	}
	if s := svc.Species.Suggest(name, 3); len(s) > 0 {
		return " もしかして: " + strings.Join(s, "、")
	}
	return ""
}

// outcomeMessage turns an expected outcome into a user-facing reply. It
// returns false for operational failures, which the caller propagates.
func outcomeMessage(err error, now time.Time) (string, bool) {
	var cd *zoo.CooldownError
	var ce *zoo.CapacityError
	switch {
	case errors.Is(err, zoo.ErrBirdsAsleep):
		return "🌙 鳥たちはぐっすり眠っています。朝7時以降にまた来てください。", true
	case errors.As(err, &cd):
		wait := cd.NextEligibleAt.Sub(now).Round(time.Minute)
		if wait < time.Minute {
			wait = time.Minute
		}
		return fmt.Sprintf("⏰ さっきごはんをあげたばかりです。あと%d分待ってください。", int(wait.Minutes())), true
	case errors.As(err, &ce):
		if ce.Queued {
			return fmt.Sprintf("🈵 %sは満員です。順番待ちリストの%d番目に登録しました。空きが出たら自動で入園します。",
				ce.Area.Label(), ce.QueuePosition), true
		}
		return fmt.Sprintf("🈵 %sは満員です。", ce.Area.Label()), true
	case errors.Is(err, zoo.ErrNotFound):
		return "🔍 見つかりませんでした。", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// /zoo
// ---------------------------------------------------------------------------

func zooCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "zoo",
		Description: "鳥類園の様子を見る",
		Usage:       "/zoo",
		Handler: func(_ context.Context, _ string, cc *CommandContext) (*CommandResult, error) {
			now := svc.Env.Now()
			st := svc.Store.Get(cc.GuildID)
			return &CommandResult{Content: renderZoo(st, svc.Store.Capacity(), now), Data: st}, nil
		},
	}
}

func renderZoo(st *zoo.ZooState, capacity int, now time.Time) string {
	env := environment.Compute(now)
	var b strings.Builder
	fmt.Fprintf(&b, "🐦 鳥類園 %s %s / %s %s\n",
		env.At.Format("15:04"), env.TimeSlot.Label(), env.Season.Name, env.Moon.Emoji)
	if env.TimeSlot == environment.SlotSleep {
		b.WriteString("🌙 みんな眠っています…\n")
	}

	for _, h := range zoo.Habitats {
		birds := st.Areas[h]
		fmt.Fprintf(&b, "【%s】 %d/%d\n", h.Label(), len(birds), capacity)
		if len(birds) == 0 {
			b.WriteString("  (空き)\n")
			continue
		}
		for _, r := range birds {
			fmt.Fprintf(&b, "  %s — %d日目・%s (%s)", r.Name, r.DaysInResidence(now)+1, r.Activity, r.Mood)
			if r.IsHungry {
				b.WriteString(" 🍽️おなかすいた")
			}
			b.WriteByte('\n')
		}
	}

	if len(st.Visitors) > 0 {
		b.WriteString("【訪問中】\n")
		for _, v := range st.Visitors {
			left := v.EffectiveDeparture().Sub(now)
			if left < 0 {
				left = 0
			}
			fmt.Fprintf(&b, "  %s — あと%s", v.Name, formatDuration(left))
			if v.InviterName != "" {
				fmt.Fprintf(&b, " (招待: %s)", v.InviterName)
			}
			b.WriteByte('\n')
		}
	}
	if n := len(st.AdmissionQueue); n > 0 {
		fmt.Fprintf(&b, "⏳ 順番待ち: %d羽\n", n)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%d分", m)
	}
	return fmt.Sprintf("%d時間%d分", h, m)
}

// ---------------------------------------------------------------------------
// /feed
// ---------------------------------------------------------------------------

func feedCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "feed",
		Description: "鳥にごはんをあげる",
		Usage:       "/feed <鳥の名前> <食べ物>",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) < 2 {
				return &CommandResult{Content: "使い方: /feed <鳥の名前> <食べ物>"}, nil
			}
			bird, food := fields[0], strings.Join(fields[1:], " ")

			out, err := svc.Feeding.Feed(ctx, cc.GuildID, bird, cc.UserID, food)
			if err != nil {
				msg, ok := outcomeMessage(err, svc.Env.Now())
				if !ok {
					return nil, err
				}
				if errors.Is(err, zoo.ErrNotFound) {
					msg = fmt.Sprintf("🔍 %sは園内にいません。/zoo で今いる鳥を確認できます。", bird)
				}
				return &CommandResult{Content: msg}, nil
			}

			var b strings.Builder
			b.WriteString(out.Message)
			fmt.Fprintf(&b, "\n%sは%s", out.BirdName, out.Activity)
			if out.ExtensionDays > 0 {
				fmt.Fprintf(&b, "\n🏡 滞在が%d日延びました！", out.ExtensionDays)
			}
			if out.SpecialEvent != nil {
				b.WriteString("\n" + out.SpecialEvent.Content)
				svc.publish(ctx, cc.GuildID, *out.SpecialEvent)
			}
			return &CommandResult{Content: b.String(), Data: out}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /invite and /admit
// ---------------------------------------------------------------------------

func inviteCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "invite",
		Description: "鳥を数時間だけ招待する",
		Usage:       "/invite <鳥の種類>",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			species := strings.TrimSpace(args)
			if species == "" {
				return &CommandResult{Content: "使い方: /invite <鳥の種類>"}, nil
			}
			v, err := svc.Admission.AdmitVisitor(ctx, cc.GuildID, species, cc.UserID, cc.UserName, admission.VisitorOptions{})
			if err != nil {
				if errors.Is(err, zoo.ErrNotFound) {
					return &CommandResult{Content: fmt.Sprintf("🔍 %sという鳥は図鑑にいません。%s", species, svc.suggestSpecies(species))}, nil
				}
				return nil, err
			}
			stay := v.EffectiveDeparture().Sub(v.EntryTime)
			return &CommandResult{
				Content: fmt.Sprintf("🎫 %sが遊びに来ました！ %sほど滞在します。", v.Name, formatDuration(stay)),
				Data:    v,
			}, nil
		},
	}
}

func admitCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "admit",
		Description: "鳥を住民として迎え入れる",
		Usage:       "/admit <鳥の種類> [滞在日数]",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) == 0 {
				return &CommandResult{Content: "使い方: /admit <鳥の種類> [滞在日数]"}, nil
			}
			opts := admission.ResidentOptions{RequestedBy: cc.UserID}
			if len(fields) > 1 {
				days, err := strconv.Atoi(fields[1])
				if err != nil || days < 1 || days > 30 {
					return &CommandResult{Content: "滞在日数は1〜30の数字で指定してください。"}, nil
				}
				opts.StayDays = days
			}

			as, err := svc.Admission.AdmitResident(ctx, cc.GuildID, fields[0], opts)
			if err != nil {
				msg, ok := outcomeMessage(err, svc.Env.Now())
				if !ok {
					return nil, err
				}
				if errors.Is(err, zoo.ErrNotFound) {
					msg = fmt.Sprintf("🔍 %sという鳥は図鑑にいません。%s", fields[0], svc.suggestSpecies(fields[0]))
				}
				return &CommandResult{Content: msg}, nil
			}
			svc.publish(ctx, cc.GuildID, as.Event)
			return &CommandResult{Content: "🐣 " + as.Event.Content, Data: as}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /events and /weather
// ---------------------------------------------------------------------------

func eventsCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "events",
		Description: "最近の出来事を見る",
		Usage:       "/events [件数]",
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			n := 5
			if args != "" {
				v, err := strconv.Atoi(strings.TrimSpace(args))
				if err != nil || v < 1 {
					return &CommandResult{Content: "件数は1以上の数字で指定してください。"}, nil
				}
				n = min(v, 20)
			}
			evs := svc.Store.Get(cc.GuildID).RecentEvents(n)
			if len(evs) == 0 {
				return &CommandResult{Content: "まだ何も起きていません。"}, nil
			}
			var b strings.Builder
			b.WriteString("📜 最近の出来事:\n")
			for _, ev := range evs {
				fmt.Fprintf(&b, "  %s %s\n", ev.Timestamp.In(environment.JST).Format("01/02 15:04"), ev.Content)
			}
			return &CommandResult{Content: b.String(), Data: evs}, nil
		},
	}
}

func weatherCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "weather",
		Description: "鳥類園の天気と季節を見る",
		Usage:       "/weather",
		Handler: func(ctx context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			env := svc.Env.Snapshot(ctx)
			return &CommandResult{Content: renderEnvironment(env), Data: env}, nil
		},
	}
}

func renderEnvironment(env *environment.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕰️ %s (%s)\n", env.At.Format("2006/01/02 15:04"), env.TimeSlot.Label())
	fmt.Fprintf(&b, "🍃 %s・%s\n", env.Season.Name, env.Season.SubSeason)
	fmt.Fprintf(&b, "%s %s\n", env.Moon.Emoji, env.Moon.Name)
	if env.SpecialDay != nil {
		fmt.Fprintf(&b, "%s 今日は%s\n", env.SpecialDay.Emoji, env.SpecialDay.Name)
	}
	w := env.Weather
	if w == nil {
		b.WriteString("☁️ 天気情報は取得できませんでした\n")
		return b.String()
	}
	fmt.Fprintf(&b, "天気: %s", w.Condition.Label())
	if w.Description != "" {
		fmt.Fprintf(&b, " (%s)", w.Description)
	}
	b.WriteByte('\n')
	if w.Temperature != nil {
		fmt.Fprintf(&b, "🌡️ %.1f℃ %s\n", *w.Temperature, events.TemperatureBucket(*w.Temperature))
	}
	if w.Humidity != nil {
		fmt.Fprintf(&b, "💧 %.0f%% %s\n", *w.Humidity, events.HumidityBucket(*w.Humidity))
	}
	if w.WindSpeed != nil {
		fmt.Fprintf(&b, "🌬️ %.1fm/s %s\n", *w.WindSpeed, events.WindBucket(*w.WindSpeed))
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Admin: /zoo_check, /zoo_remove, /extend
// ---------------------------------------------------------------------------

func zooCheckCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "zoo_check",
		Description: "鳥が巣と園内に重複していないか調べる",
		Usage:       "/zoo_check <鳥の名前>",
		Admin:       true,
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			name := strings.TrimSpace(args)
			if name == "" {
				return &CommandResult{Content: "使い方: /zoo_check <鳥の名前>"}, nil
			}
			rep, err := svc.Admission.IsDuplicated(ctx, name, cc.GuildID)
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "🔎 %s の所在:\n", name)
			if len(rep.Locations) == 0 {
				b.WriteString("  園内: なし\n")
			}
			for _, loc := range rep.Locations {
				where := loc.Area.Label()
				if loc.Visitor {
					where = "訪問中"
				}
				fmt.Fprintf(&b, "  園内: %s (%s)\n", where, loc.BirdID)
			}
			if rep.Nested {
				fmt.Fprintf(&b, "  巣: <@%s>\n", rep.NestOwner)
			} else {
				b.WriteString("  巣: なし\n")
			}
			if rep.Duplicated {
				b.WriteString("⚠️ 巣と園内の両方にいます。/zoo_remove で園内から整理できます。")
			} else {
				b.WriteString("✅ 重複はありません。")
			}
			return &CommandResult{Content: b.String(), Data: rep}, nil
		},
	}
}

func zooRemoveCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "zoo_remove",
		Description: "鳥を園内から強制的に退園させる",
		Usage:       "/zoo_remove <鳥の名前>",
		Admin:       true,
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			name := strings.TrimSpace(args)
			if name == "" {
				return &CommandResult{Content: "使い方: /zoo_remove <鳥の名前>"}, nil
			}
			n, err := svc.Admission.ForceRemove(ctx, name, cc.GuildID)
			if err != nil {
				if errors.Is(err, zoo.ErrNotFound) {
					return &CommandResult{Content: fmt.Sprintf("🔍 %sは園内にいません。", name)}, nil
				}
				return nil, err
			}
			return &CommandResult{Content: fmt.Sprintf("🧹 %sを園内から%d件整理しました。巣の記録はそのままです。", name, n)}, nil
		},
	}
}

func extendCommand(svc *ZooServices) *Command {
	return &Command{
		Name:        "extend",
		Description: "住民の滞在を延長する",
		Usage:       "/extend <鳥の名前> <日数> [時間]",
		Admin:       true,
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) < 2 || len(fields) > 3 {
				return &CommandResult{Content: "使い方: /extend <鳥の名前> <日数> [時間]"}, nil
			}
			days, err := strconv.Atoi(fields[1])
			hours := 0
			if err == nil && len(fields) == 3 {
				hours, err = strconv.Atoi(fields[2])
			}
			if err != nil || days < 0 || hours < 0 {
				return &CommandResult{Content: "日数と時間は0以上の数字で指定してください。"}, nil
			}

			dep, err := svc.Feeding.ExtendStay(cc.GuildID, fields[0], days, hours)
			if err != nil {
				if errors.Is(err, zoo.ErrNotFound) {
					return &CommandResult{Content: fmt.Sprintf("🔍 %sという住民はいません。", fields[0])}, nil
				}
				return nil, err
			}
			return &CommandResult{Content: fmt.Sprintf("🏡 %sの滞在を延長しました。旅立ちは %s です。",
				fields[0], dep.In(environment.JST).Format("01/02 15:04"))}, nil
		},
	}
}
