package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/crux/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a request id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "group:1/req-1")
			second := d.SeenAndRecord(ctx, "group:1/req-1")

			Convey("Then only the first call is new", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, int64(1))
			})
		})

		Convey("When an id is only checked", func() {
			seen := d.Seen(ctx, "req-1")

			Convey("Then it is not recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, int64(0))
				So(d.SeenAndRecord(ctx, "req-1"), ShouldBeFalse)
				So(d.Seen(ctx, "req-1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c", "d"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("Then the oldest id was evicted and the others are kept", func() {
			So(d.Size(), ShouldEqual, int64(3))
			So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})

		Convey("When the evicted id is checked", func() {
			So(d.Seen(ctx, "a"), ShouldBeFalse)

			Convey("Then checking evicts nothing else", func() {
				So(d.Size(), ShouldEqual, int64(3))
				So(d.Seen(ctx, "b"), ShouldBeTrue)
				So(d.Seen(ctx, "d"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
		const n = 1000
		for i := 0; i < n; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("req-%d", i))
		}

		Convey("Then every id is kept", func() {
			So(d.Size(), ShouldEqual, int64(n))
			So(d.SeenAndRecord(ctx, "req-0"), ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10000))
		const workers = 10
		const perWorker = 100

		Convey("When they all record the same ids", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("req-%d", j)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each id is new exactly once", func() {
				So(fresh, ShouldEqual, perWorker)
				So(d.Size(), ShouldEqual, int64(perWorker))
			})
		})
	})
}
