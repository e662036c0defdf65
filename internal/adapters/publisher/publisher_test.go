package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func event(version uint64, climbers ...int64) types.RankingEvent {
	entries := make([]types.Entry, len(climbers))
	diff := make([]types.Change, len(climbers))
	for i, id := range climbers {
		entries[i] = types.Entry{ClimberID: id, Ranking: i + 1}
		diff[i] = types.Change{ClimberID: id, Added: true}
	}
	return types.RankingEvent{
		Scope:       model.GroupScope(4),
		RankingType: model.FormatCircuit,
		Rankings:    types.Rankings{Type: model.FormatCircuit, Entries: entries},
		Diff:        diff,
		Version:     version,
	}
}

func TestWatermillPublisher(t *testing.T) {
	Convey("Given a publisher with one subscriber", t, func() {
		p := New(WithBuffer(0))
		defer p.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := p.Subscribe(ctx)
		So(err, ShouldBeNil)

		Convey("When events are published in sequence", func() {
			errs := make(chan error, 1)
			go func() {
				for v := uint64(1); v <= 3; v++ {
					if err := p.Publish(ctx, event(v, int64(v))); err != nil {
						errs <- err
						return
					}
				}
				errs <- nil
			}()

			var got []types.RankingEvent
			for len(got) < 3 {
				select {
				case ev := <-events:
					got = append(got, ev)
				case <-time.After(2 * time.Second):
					t.Fatal("timed out waiting for events")
				}
			}

			Convey("Then they arrive in order and intact", func() {
				So(<-errs, ShouldBeNil)
				So(got[0].Version, ShouldEqual, uint64(1))
				So(got[1].Version, ShouldEqual, uint64(2))
				So(got[2].Version, ShouldEqual, uint64(3))
				So(got[2].Scope, ShouldResemble, model.GroupScope(4))
				So(got[2].RankingType, ShouldEqual, model.FormatCircuit)
				So(got[2].Diff, ShouldResemble, []types.Change{{ClimberID: 3, Added: true}})
				So(got[2].Rankings.ClimberIDs(), ShouldResemble, []int64{3})
			})
		})

		Convey("When the subscription context ends", func() {
			cancel()

			Convey("Then the channel closes", func() {
				select {
				case _, ok := <-events:
					So(ok, ShouldBeFalse)
				case <-time.After(2 * time.Second):
					t.Fatal("subscription channel not closed")
				}
			})
		})
	})

	Convey("Given a publisher without subscribers", t, func() {
		p := New()
		defer p.Close()

		Convey("Then publishing does not block", func() {
			So(p.Publish(context.Background(), event(1, 7)), ShouldBeNil)
		})
	})
}
