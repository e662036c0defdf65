package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/crux/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var errRejected = errors.New("rejected")

func key(g, b, c int64) model.ResultKey {
	return model.ResultKey{GroupID: g, BoulderID: b, ClimberID: c}
}

func addTry(cur model.Result, _ bool) (model.Result, error) {
	cur.Tries++
	return cur, nil
}

func reject(model.Result, bool) (model.Result, error) {
	return model.Result{}, errRejected
}

func TestMemoryStore_Mutate(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		s := NewMemoryStore(WithShardCount(4))

		Convey("When a result is read before any write", func() {
			_, err := s.Get(ctx, key(1, 1, 1))

			Convey("Then it is not found", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a result is mutated twice", func() {
			var seen []bool
			fn := func(cur model.Result, existed bool) (model.Result, error) {
				seen = append(seen, existed)
				return addTry(cur, existed)
			}
			_, err := s.Mutate(ctx, key(1, 2, 3), fn)
			So(err, ShouldBeNil)
			r, err := s.Mutate(ctx, key(1, 2, 3), fn)
			So(err, ShouldBeNil)

			Convey("Then the second call sees the first write", func() {
				So(seen, ShouldResemble, []bool{false, true})
				So(r.Tries, ShouldEqual, 2)
				So(r.ResultKey, ShouldResemble, key(1, 2, 3))
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the mutation fails", func() {
			_, err := s.Mutate(ctx, key(1, 1, 1), reject)

			Convey("Then nothing is written", func() {
				So(err, ShouldEqual, errRejected)
				_, err := s.Get(ctx, key(1, 1, 1))
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)
			_, err := s.Mutate(ctx, key(1, 1, 1), addTry)

			Convey("Then writes are refused", func() {
				So(err, ShouldEqual, ErrClosed)
			})
		})
	})
}

func TestMemoryStore_MutateBatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store", t, func() {
		s := NewMemoryStore()

		Convey("When entry 3 of 5 fails", func() {
			muts := []Mutation{
				{Key: key(1, 1, 1), Fn: addTry},
				{Key: key(1, 2, 1), Fn: addTry},
				{Key: key(1, 3, 1), Fn: reject},
				{Key: key(1, 4, 1), Fn: addTry},
				{Key: key(1, 5, 1), Fn: addTry},
			}
			_, err := s.MutateBatch(ctx, 1, muts)

			Convey("Then nothing is written and the failing index is reported", func() {
				var be *BatchError
				So(errors.As(err, &be), ShouldBeTrue)
				So(be.Index, ShouldEqual, 2)
				So(errors.Is(err, errRejected), ShouldBeTrue)
				list, _ := s.ListByGroup(ctx, 1)
				So(list, ShouldBeEmpty)
			})
		})

		Convey("When a batch touches the same key twice", func() {
			out, err := s.MutateBatch(ctx, 1, []Mutation{
				{Key: key(1, 1, 1), Fn: addTry},
				{Key: key(1, 1, 1), Fn: addTry},
			})

			Convey("Then the second mutation sees the first", func() {
				So(err, ShouldBeNil)
				So(out[1].Tries, ShouldEqual, 2)
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When a batch mixes groups", func() {
			_, err := s.MutateBatch(ctx, 1, []Mutation{
				{Key: key(1, 1, 1), Fn: addTry},
				{Key: key(2, 1, 1), Fn: addTry},
			})

			Convey("Then it is rejected as invalid input", func() {
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestMemoryStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()

	Convey("Given results across two groups", t, func() {
		s := NewMemoryStore(WithShardCount(2))
		for _, k := range []model.ResultKey{
			key(1, 2, 20), key(1, 1, 20), key(1, 1, 10), key(1, 2, 10), key(3, 1, 10),
		} {
			_, err := s.Mutate(ctx, k, addTry)
			So(err, ShouldBeNil)
		}

		Convey("Then a group lists by climber then boulder", func() {
			list, err := s.ListByGroup(ctx, 1)
			So(err, ShouldBeNil)
			var keys []model.ResultKey
			for _, r := range list {
				keys = append(keys, r.ResultKey)
			}
			So(keys, ShouldResemble, []model.ResultKey{
				key(1, 1, 10), key(1, 2, 10), key(1, 1, 20), key(1, 2, 20),
			})
		})

		Convey("When a boulder is deleted", func() {
			n, err := s.DeleteBoulder(ctx, 1, 1)

			Convey("Then only that group's results on it go", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				total, _ := s.Count(ctx)
				So(total, ShouldEqual, 3)
				_, err := s.Get(ctx, key(3, 1, 10))
				So(err, ShouldBeNil)
			})
		})

		Convey("When a climber is deleted", func() {
			n, err := s.DeleteClimber(ctx, 1, 20)

			Convey("Then the climber has no result left in the group", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				list, _ := s.ListByGroup(ctx, 1)
				So(list, ShouldHaveLength, 2)
			})
		})
	})
}

func TestMemoryStore_Concurrency(t *testing.T) {
	Convey("Given many goroutines adding tries to one result", t, func() {
		s := NewMemoryStore()
		const workers = 20
		const perWorker = 50

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, _ = s.Mutate(context.Background(), key(7, 1, 1), addTry)
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			r, err := s.Get(context.Background(), key(7, 1, 1))
			So(err, ShouldBeNil)
			So(r.Tries, ShouldEqual, workers*perWorker)
		})
	})
}
