package feeding

import "github.com/nidhogg/bird-zoo/internal/zoo"

var feedMessages = map[zoo.Preference][]string{
	zoo.PreferenceFavorite: {
		"✨ {bird}は{food}が大好物！夢中になって食べています",
		"💕 {food}をもらった{bird}は、嬉しそうに羽を震わせています",
		"🎉 {bird}が{food}に大喜び！もう少しここにいたくなったようです",
	},
	zoo.PreferenceAcceptable: {
		"🍽️ {bird}は{food}をおいしそうに食べています",
		"😊 {bird}は{food}をついばんで満足そうです",
		"🌱 {food}をもらった{bird}は、のんびり食事を楽しんでいます",
	},
	zoo.PreferenceDislike: {
		"🤔 {bird}は{food}をちょっとつついて、首をかしげました",
		"😅 {bird}は{food}があまり好きではないようです",
		"💭 {food}を前に、{bird}は少し困った顔をしています",
	},
}

var specialMessages = []string{
	"🌟 {food}を食べた{bird}が、お礼に美しい歌声を聞かせてくれました！",
	"🪶 {bird}がきれいな羽根を一枚、そっと置いていきました",
	"🌈 {bird}が嬉しさのあまり、空高く舞い上がりました！",
	"🎵 {bird}の喜びの声に、周りの鳥たちも集まってきました",
}

var hungerMessages = []string{
	"🍂 {bird}がお腹を空かせているようです。誰かごはんをあげてくれないかな",
	"😢 {bird}が餌場の前でじっと待っています",
	"🍽️ {bird}のお腹がぐうと鳴りました",
}
