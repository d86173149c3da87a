package events

import (
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/weather"
)

var weatherEmoji = map[weather.Condition]string{
	weather.Sunny:  "☀️",
	weather.Cloudy: "☁️",
	weather.Rainy:  "🌧️",
	weather.Snowy:  "❄️",
	weather.Stormy: "⛈️",
	weather.Foggy:  "🌫️",
}

var weatherTemplates = map[weather.Condition][]string{
	weather.Sunny: {
		"{emoji} ぽかぽか陽気に、{bird}が気持ちよさそうに日向ぼっこをしています",
		"{emoji} 青空の下、{bird}が元気いっぱいに羽ばたいています",
		"{emoji} まぶしい日差しに、{bird}が目を細めています",
	},
	weather.Cloudy: {
		"{emoji} 曇り空の下、{bird}はのんびり過ごしています",
		"{emoji} 雲の切れ間を{bird}がじっと見上げています",
	},
	weather.Rainy: {
		"{emoji} 雨の音を聞きながら、{bird}が葉っぱの下で雨宿りしています",
		"{emoji} {bird}が水たまりで楽しそうに水浴びをしています",
		"{emoji} 雨粒を羽で弾きながら、{bird}が身を寄せ合っています",
	},
	weather.Snowy: {
		"{emoji} 雪景色の中、{bird}が羽をふくらませて丸くなっています",
		"{emoji} 舞い落ちる雪を、{bird}が不思議そうに見つめています",
	},
	weather.Stormy: {
		"{emoji} 嵐の気配に、{bird}が茂みの奥でじっと身を潜めています",
		"{emoji} 強い風雨の中、{bird}はしっかり枝につかまっています",
	},
	weather.Foggy: {
		"{emoji} 霧の中から、{bird}の鳴き声だけが聞こえてきます",
		"{emoji} 白い霧に包まれて、{bird}が静かに佇んでいます",
	},
}

var timeSlotTemplates = map[environment.TimeSlot][]string{
	environment.SlotDawn: {
		"🌅 朝焼けの中、{bird}が一番乗りでさえずり始めました",
		"🌅 まだ少し眠そうな{bird}が、ゆっくり羽を伸ばしています",
	},
	environment.SlotMorning: {
		"🌤️ 朝の光を浴びて、{bird}が元気に動き回っています",
		"🌤️ {bird}が朝ごはんを探してあちこち覗いています",
	},
	environment.SlotNoon: {
		"🕛 お昼どき、{bird}がのんびり羽づくろいをしています",
		"🕛 昼下がりの日差しの中、{bird}がうとうとしています",
	},
	environment.SlotEvening: {
		"🌇 夕焼け空を背に、{bird}がねぐらへの準備を始めています",
		"🌇 {bird}が夕日に向かって一声鳴きました",
	},
	environment.SlotNight: {
		"🌙 夜が更けて、{bird}がそろそろ眠たそうにしています",
		"🌙 静かな夜、{bird}が月明かりの下で羽を休めています",
	},
}

var quietNightTemplates = []string{
	"💤 園内は静まり返り、{bird}もぐっすり眠っています",
	"💤 寝息だけが聞こえる夜。{bird}は夢の中のようです",
	"💤 {bird}が枝の上で小さく丸まって眠っています",
}

var seasonTemplates = [12][]string{
	{"🎍 新しい年の澄んだ空気の中、{bird}が凛とした姿を見せています", "⛄ 冬の寒さに負けず、{bird}が羽をふくらませています"},
	{"❄️ 寒さの厳しい季節、{bird}が日だまりを探しています", "🌸 梅のつぼみがふくらみ、{bird}が枝から枝へ飛び移っています"},
	{"🌱 春の訪れを感じて、{bird}がうきうきとさえずっています", "🌼 芽吹き始めた草木の間を、{bird}が散策しています"},
	{"🌸 桜の花びらが舞う中、{bird}が楽しそうに飛び回っています", "🌸 満開の桜の枝に、{bird}がとまっています"},
	{"🍃 新緑の香りに包まれて、{bird}が気持ちよさそうです", "🎏 爽やかな風に乗って、{bird}が軽やかに舞っています"},
	{"☔ 梅雨の晴れ間に、{bird}が濡れた羽を乾かしています", "🐌 紫陽花の陰で、{bird}が雨をしのいでいます"},
	{"🌻 夏の日差しに、{bird}が木陰で涼んでいます", "🎐 風鈴の音に、{bird}が首をかしげています"},
	{"🍉 暑い盛り、{bird}が水浴びを楽しんでいます", "🌊 夏の終わりの気配に、{bird}が空を見上げています"},
	{"🌾 秋風が吹き始め、{bird}が実りの季節を楽しんでいます", "🎑 すすきの揺れる中、{bird}が静かに佇んでいます"},
	{"🍁 色づく木々の中、{bird}が木の実を探しています", "🍂 落ち葉の上を、{bird}がかさかさと歩いています"},
	{"🍂 晩秋の澄んだ空気の中、{bird}が遠くを見つめています", "🌰 冬支度を始めた{bird}が、せっせと動き回っています"},
	{"🎄 冬の足音が聞こえる中、{bird}が羽毛をふくらませています", "❄️ 初雪を待ちわびるように、{bird}が空を見上げています"},
}

var specialDayTemplates = []string{
	"{emoji} 今日は{day}！{bird}もなんだか嬉しそうです",
	"{emoji} {day}の特別な空気に、{bird}がそわそわしています",
	"{emoji} {bird}が{day}をお祝いするように、高らかに歌っています",
}

var moonTemplates = [8][]string{
	{"{emoji} 新月の暗い夜、{bird}は星明かりを頼りに過ごしています"},
	{"{emoji} 細い三日月を、{bird}が不思議そうに見上げています"},
	{"{emoji} 上弦の月の下、{bird}が静かに羽を休めています"},
	{"{emoji} ふくらんでいく月に照らされて、{bird}の羽がきらりと光りました"},
	{"{emoji} 満月の明るい夜、{bird}が月に向かって鳴いています", "{emoji} まんまるの月明かりの中、{bird}のシルエットが浮かび上がりました"},
	{"{emoji} 少し欠けた月を眺めながら、{bird}がのんびりしています"},
	{"{emoji} 下弦の月が昇る頃、{bird}がそっと目を覚ましました"},
	{"{emoji} 明け方の細い月を、{bird}がじっと見つめています"},
}

var temperatureTemplates = map[string][]string{
	"極寒": {"🥶 {temp}℃の凍える寒さ。{bird}がぎゅっと身を縮めています"},
	"寒い": {"🧣 {temp}℃の冷え込みに、{bird}が羽をふくらませています"},
	"涼しい": {"🍃 {temp}℃の涼しい空気の中、{bird}が快適そうです"},
	"穏やか": {"😌 {temp}℃の過ごしやすい陽気に、{bird}がご機嫌です"},
	"暖かい": {"🌤️ {temp}℃の暖かさに、{bird}がのびのびしています"},
	"暑い":  {"🥵 {temp}℃の暑さに、{bird}が口を開けて体温を下げています"},
	"猛暑":  {"🔥 {temp}℃の猛暑！{bird}が日陰から動こうとしません"},
}

var windTemplates = map[string][]string{
	"無風":  {"🍃 風ひとつない穏やかな日。{bird}がゆったり過ごしています"},
	"そよ風": {"🌬️ そよ風に羽をなびかせて、{bird}が気持ちよさそうです"},
	"強風":  {"💨 強い風に、{bird}が枝にしっかりしがみついています"},
	"暴風":  {"🌪️ 吹き荒れる風に、{bird}が物陰でじっと耐えています"},
}

var humidityTemplates = map[string][]string{
	"乾燥": {"🏜️ 空気が乾いていて、{bird}がこまめに水を飲んでいます"},
	"快適": {"✨ ちょうどいい湿り気の空気に、{bird}の羽もつややかです"},
	"多湿": {"💧 じめじめした空気に、{bird}が羽をばたつかせています"},
}

var nocturnalTemplates = []string{
	"🦉 夜行性の{bird}が、暗がりの中でぱっちりと目を開けています",
	"🦉 {bird}が音もなく飛び立ち、夜の見回りを始めました",
	"🦉 昼間はおとなしい{bird}も、この時間は生き生きとしています",
}

var flockTemplates = []string{
	"👥 {count}羽の{bird}が、仲良く並んでとまっています",
	"👥 {bird}の群れ（{count}羽）が、一斉に飛び立ちました",
	"👥 {count}羽の{bird}が、おしゃべりするように鳴き交わしています",
}

var longStayTemplates = []string{
	"🏡 滞在{days}日目の{bird}は、すっかりこの場所に馴染んでいます",
	"🏡 {days}日間ここで暮らす{bird}が、新入りに場所を案内しているようです",
}

var areaMovementTemplates = []string{
	"🚶 {bird}が{from}から{to}へ、ちょっと散歩に出かけました",
	"🔍 {bird}が{to}の様子を見に行って、すぐに{from}へ戻ってきました",
}

var flyoverTemplates = []string{
	"✈️ 渡りの途中の{bird}が、園の上空を通り過ぎていきました",
	"✈️ 空高く、{bird}の群れが旅を続けていきます",
}

var flyoverWitnessTemplates = []string{
	"✈️ 渡りの途中の{bird}が上空を通過！{witness}が見送るように鳴きました",
	"✈️ {bird}が空を横切っていきました。{witness}がじっと見上げています",
}

var interactionTemplates = []string{
	"🤝 {bird}と{other}が、並んで羽づくろいをしています",
	"🎶 {bird}と{other}が、歌で会話をしているようです",
	"🍃 {bird}が{other}に、お気に入りの場所を教えています",
}

var visitorTemplates = []string{
	"🎫 遊びに来ている{bird}が、住人たちに挨拶してまわっています",
	"🎫 {bird}が珍しそうに園内を見学しています",
}

var regularTemplates = []string{
	"⭐ {count}回もごはんをもらった{bird}は、すっかり人懐っこくなりました",
	"⭐ 常連の{bird}が、ごはんの時間を覚えて待っています",
}

var regularSupporterTemplates = []string{
	"⭐ {bird}は、いつもごはんをくれる<@{supporter}>さんを探しているようです",
}

var hungryTemplates = []string{
	"🍽️ {bird}がお腹を空かせて、餌場をうろうろしています",
	"🍽️ {bird}がごはんを催促するように鳴いています",
}
