package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

func TestDefaultTableLookup(t *testing.T) {
	tbl := Default()
	sp, err := tbl.Lookup(context.Background(), "カワセミ")
	if err != nil {
		t.Fatal(err)
	}
	if HabitatFor(sp) != zoo.HabitatWaterside {
		t.Errorf("カワセミ habitat = %s", HabitatFor(sp))
	}
	if _, err := tbl.Lookup(context.Background(), "ドードー"); !errors.Is(err, zoo.ErrNotFound) {
		t.Errorf("unknown species err = %v", err)
	}
}

func TestHabitatFor(t *testing.T) {
	tests := []struct {
		tags []string
		want zoo.Habitat
	}{
		{[]string{"森林"}, zoo.HabitatForest},
		{[]string{"高山"}, zoo.HabitatForest},
		{[]string{"河川・湖沼"}, zoo.HabitatWaterside},
		{[]string{"海"}, zoo.HabitatWaterside},
		{[]string{"市街地", "農耕地"}, zoo.HabitatGrassland},
		{nil, zoo.HabitatGrassland},
	}
	for _, tt := range tests {
		if got := HabitatFor(&Species{HabitatTags: tt.tags}); got != tt.want {
			t.Errorf("HabitatFor(%v) = %s, want %s", tt.tags, got, tt.want)
		}
	}
	if HabitatFor(nil) != zoo.HabitatGrassland {
		t.Error("nil species should map to grassland")
	}
}

func TestClassify(t *testing.T) {
	sp := &Species{FavoriteFoods: []string{"果物"}, AcceptableFoods: []string{"虫"}}
	if got := Classify(sp, "果物"); got != zoo.PreferenceFavorite {
		t.Errorf("got %s", got)
	}
	if got := Classify(sp, "虫"); got != zoo.PreferenceAcceptable {
		t.Errorf("got %s", got)
	}
	if got := Classify(sp, "魚"); got != zoo.PreferenceDislike {
		t.Errorf("got %s", got)
	}
	if got := Classify(nil, "魚"); got != zoo.PreferenceAcceptable {
		t.Errorf("nil species got %s", got)
	}
}

func TestIsNocturnal(t *testing.T) {
	yes, no := true, false
	if !IsNocturnal(&Species{Nocturnal: &yes}, "スズメ") {
		t.Error("catalog flag should win")
	}
	if IsNocturnal(&Species{Nocturnal: &no}, "フクロウ") {
		t.Error("explicit false should win over keywords")
	}
	if !IsNocturnal(nil, "シマフクロウ") {
		t.Error("keyword fallback should flag owls")
	}
	if IsNocturnal(&Species{}, "スズメ") {
		t.Error("sparrow is not nocturnal")
	}
}

func TestSuggestAndMigratory(t *testing.T) {
	tbl := Default()
	got := tbl.Suggest("カワセ", 3)
	if len(got) == 0 || got[0] != "カワセミ" {
		t.Errorf("Suggest = %v", got)
	}
	mig := tbl.Migratory()
	found := false
	for _, n := range mig {
		if n == "ツバメ" {
			found = true
		}
		if n == "スズメ" {
			t.Error("スズメ is not migratory")
		}
	}
	if !found {
		t.Errorf("Migratory = %v", mig)
	}
}

type slowCatalog struct{}

func (slowCatalog) Lookup(ctx context.Context, _ string) (*Species, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLookupBoundedTimesOut(t *testing.T) {
	start := time.Now()
	_, err := LookupBounded(context.Background(), slowCatalog{}, "メジロ", 20*time.Millisecond)
	if !errors.Is(err, zoo.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("lookup was not bounded")
	}
}
