package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/crux/internal/domain/model"
	types "github.com/okian/crux/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryJSON(t *testing.T) {
	Convey("Given ranking entries", t, func() {
		Convey("When a counted entry is encoded", func() {
			e := types.Entry{
				ClimberID: 7,
				Ranking:   1,
				Tops:      []bool{true, false},
				Counted: &types.Counted{
					TopsInTries:  []int{2, 0},
					Zones:        []bool{true, true},
					ZonesInTries: []int{1, 3},
				},
			}
			b, err := json.Marshal(e)
			So(err, ShouldBeNil)

			Convey("Then the counted arrays are flattened and unlimited fields are absent", func() {
				var m map[string]any
				So(json.Unmarshal(b, &m), ShouldBeNil)
				So(m["climberId"], ShouldEqual, float64(7))
				So(m["ranking"], ShouldEqual, float64(1))
				So(m, ShouldContainKey, "topsInTries")
				So(m, ShouldContainKey, "zonesInTries")
				So(m, ShouldNotContainKey, "points")
				So(m, ShouldNotContainKey, "nbTops")
				So(m, ShouldNotContainKey, "groupId")
			})
		})

		Convey("When an unlimited entry is encoded", func() {
			e := types.Entry{
				ClimberID: 3,
				Ranking:   2,
				GroupID:   11,
				Tops:      []bool{true},
				Unlimited: &types.Unlimited{NbTops: 1, Points: 500},
			}
			b, err := json.Marshal(e)
			So(err, ShouldBeNil)

			Convey("Then only unlimited totals appear", func() {
				var m map[string]any
				So(json.Unmarshal(b, &m), ShouldBeNil)
				So(m["points"], ShouldEqual, float64(500))
				So(m["nbTops"], ShouldEqual, float64(1))
				So(m["groupId"], ShouldEqual, float64(11))
				So(m, ShouldNotContainKey, "zones")
			})
		})
	})
}

func TestRankingEventJSON(t *testing.T) {
	Convey("Given a ranking event for a group scope", t, func() {
		ev := types.RankingEvent{
			Scope:       model.GroupScope(4),
			RankingType: model.FormatCircuit,
			Rankings:    types.Rankings{Type: model.FormatCircuit, Entries: []types.Entry{{ClimberID: 9, Ranking: 1}}},
			Diff:        []types.Change{{ClimberID: 9, Added: true}},
			Version:     3,
		}

		Convey("When it is encoded and decoded", func() {
			b, err := json.Marshal(ev)
			So(err, ShouldBeNil)
			var back types.RankingEvent
			So(json.Unmarshal(b, &back), ShouldBeNil)

			Convey("Then the scope and format keep their textual form", func() {
				So(string(b), ShouldContainSubstring, `"scope":"group:4"`)
				So(string(b), ShouldContainSubstring, `"rankingType":"CIRCUIT"`)
				So(back.Scope, ShouldResemble, ev.Scope)
				So(back.Rankings.ClimberIDs(), ShouldResemble, []int64{9})
				So(back.Diff, ShouldResemble, ev.Diff)
			})
		})
	})
}
