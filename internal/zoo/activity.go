package zoo

// Text pools for a bird's mood and current activity. They are regenerated
// on every state change.

var moods = []string{
	"ご機嫌", "のんびり", "わくわく", "うとうと", "好奇心いっぱい", "おだやか", "そわそわ",
}

var arrivalActivities = map[Habitat][]string{
	HabitatForest: {
		"木の枝にとまって辺りを見回しています",
		"木漏れ日の中で羽を休めています",
		"幹をつついて様子を探っています",
	},
	HabitatGrassland: {
		"草の間をちょこちょこ歩いています",
		"広い空を見上げています",
		"地面の虫を探しています",
	},
	HabitatWaterside: {
		"水面をのぞきこんでいます",
		"浅瀬で足を濡らしています",
		"岸辺で羽づくろいをしています",
	},
}

var visitorActivities = []string{
	"初めての景色をきょろきょろ眺めています",
	"招待してくれた人のそばで落ち着いています",
	"少しだけ緊張しながら辺りを観察しています",
}

var hungryActivities = []string{
	"お腹を空かせてきょろきょろしています",
	"ごはんを待ちわびて鳴いています",
	"餌場の方をじっと見つめています",
}

var fedActivities = map[Preference][]string{
	PreferenceFavorite: {
		"大好物に大喜びで羽をぱたぱたさせています",
		"満足そうにさえずっています",
		"嬉しそうにあなたの周りを跳ねています",
	},
	PreferenceAcceptable: {
		"おいしそうについばんでいます",
		"ひと口ずつ味わっています",
		"静かに食事を楽しんでいます",
	},
	PreferenceDislike: {
		"ちょっと首をかしげています",
		"くちばしでつついて様子を見ています",
		"少しだけ食べて顔をそむけました",
	},
}

// RandomMood picks a mood string.
func RandomMood(r Rand) string { return Pick(r, moods) }

// ArrivalActivity describes a newly admitted resident.
func ArrivalActivity(area Habitat, r Rand) string {
	pool, ok := arrivalActivities[area]
	if !ok {
		pool = arrivalActivities[HabitatGrassland]
	}
	return Pick(r, pool)
}

// VisitorActivity describes a newly arrived visitor.
func VisitorActivity(r Rand) string { return Pick(r, visitorActivities) }

// HungryActivity describes a resident that has become hungry.
func HungryActivity(r Rand) string { return Pick(r, hungryActivities) }

// FedActivity describes a bird right after a feeding of the given tier.
func FedActivity(p Preference, r Rand) string {
	pool, ok := fedActivities[p]
	if !ok {
		pool = fedActivities[PreferenceAcceptable]
	}
	return Pick(r, pool)
}
