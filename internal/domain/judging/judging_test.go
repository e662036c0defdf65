package judging_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/crux/internal/domain/judging"
	"github.com/okian/crux/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr[T any](v T) *T { return &v }

var (
	circuit   = judging.Rules{Format: model.FormatCircuit}
	limited   = judging.Rules{Format: model.FormatLimitedContest, MaxTries: 3}
	unlimited = judging.Rules{Format: model.FormatUnlimitedContest}
)

func TestApply(t *testing.T) {
	Convey("Given an empty circuit result", t, func() {
		cur := model.Result{}

		Convey("When a judge records two tries then a top", func() {
			r, err := judging.Apply(cur, circuit, model.JudgingInput{Try: true})
			So(err, ShouldBeNil)
			r, err = judging.Apply(r, circuit, model.JudgingInput{Try: true, Top: ptr(true)})
			So(err, ShouldBeNil)

			Convey("Then the top is in two tries and the zone is granted", func() {
				So(r.Tries, ShouldEqual, 2)
				So(r.Top, ShouldBeTrue)
				So(r.TopInTries, ShouldEqual, 2)
				So(r.Zone, ShouldBeTrue)
				So(r.ZoneInTries, ShouldEqual, 2)
			})

			Convey("And topping again changes nothing", func() {
				again, err := judging.Apply(r, circuit, model.JudgingInput{Top: ptr(true)})
				So(err, ShouldBeNil)
				So(again, ShouldResemble, r)
			})

			Convey("And removing the zone removes the top", func() {
				z, err := judging.Apply(r, circuit, model.JudgingInput{Zone: ptr(false)})
				So(err, ShouldBeNil)
				So(z.Zone, ShouldBeFalse)
				So(z.Top, ShouldBeFalse)
				So(z.TopInTries, ShouldEqual, 0)
				So(z.ZoneInTries, ShouldEqual, 0)
				So(z.Tries, ShouldEqual, 2)
			})
		})

		Convey("When a zone is recorded before the top", func() {
			r, _ := judging.Apply(cur, circuit, model.JudgingInput{Try: true, Zone: ptr(true)})
			r, _ = judging.Apply(r, circuit, model.JudgingInput{Try: true})
			r, err := judging.Apply(r, circuit, model.JudgingInput{Try: true, Top: ptr(true)})

			Convey("Then the earlier zone attempt is kept", func() {
				So(err, ShouldBeNil)
				So(r.ZoneInTries, ShouldEqual, 1)
				So(r.TopInTries, ShouldEqual, 3)
			})
		})

		Convey("When top and an explicit negative zone arrive together", func() {
			r, err := judging.Apply(cur, circuit, model.JudgingInput{Try: true, Top: ptr(true), Zone: ptr(false)})

			Convey("Then the zone wins", func() {
				So(err, ShouldBeNil)
				So(r.Top, ShouldBeFalse)
				So(r.Zone, ShouldBeFalse)
				So(r.Tries, ShouldEqual, 1)
			})
		})

		Convey("When the input carries no field", func() {
			r, err := judging.Apply(cur, circuit, model.JudgingInput{})

			Convey("Then it is invalid input", func() {
				So(errors.Is(err, model.ErrNoJudgingField), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
				So(r, ShouldResemble, cur)
			})
		})
	})

	Convey("Given a limited contest capped at three tries", t, func() {
		r := model.Result{}
		for i := 0; i < 3; i++ {
			var err error
			r, err = judging.Apply(r, limited, model.JudgingInput{Try: true})
			So(err, ShouldBeNil)
		}

		Convey("When a fourth try is recorded", func() {
			next, err := judging.Apply(r, limited, model.JudgingInput{Try: true, Top: ptr(true)})

			Convey("Then capacity is exceeded and nothing changes", func() {
				So(errors.Is(err, model.ErrCapacityExceeded), ShouldBeTrue)
				So(next, ShouldResemble, r)
				So(next.Top, ShouldBeFalse)
			})
		})

		Convey("When the top is recorded without a try", func() {
			next, err := judging.Apply(r, limited, model.JudgingInput{Top: ptr(true)})

			Convey("Then it counts the tries already made", func() {
				So(err, ShouldBeNil)
				So(next.TopInTries, ShouldEqual, 3)
			})
		})
	})

	Convey("Given an unlimited contest result", t, func() {
		Convey("When tries or zones are sent", func() {
			_, errTry := judging.Apply(model.Result{}, unlimited, model.JudgingInput{Try: true})
			_, errZone := judging.Apply(model.Result{}, unlimited, model.JudgingInput{Zone: ptr(true)})

			Convey("Then they are rejected", func() {
				So(errors.Is(errTry, model.ErrTriesNotCounted), ShouldBeTrue)
				So(errors.Is(errZone, model.ErrZoneNotCounted), ShouldBeTrue)
			})
		})

		Convey("When a top is sent", func() {
			r, err := judging.Apply(model.Result{}, unlimited, model.JudgingInput{Top: ptr(true)})

			Convey("Then only the top is tracked", func() {
				So(err, ShouldBeNil)
				So(r.Top, ShouldBeTrue)
				So(r.Zone, ShouldBeFalse)
				So(r.TopInTries, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an unknown ranking type", t, func() {
		_, err := judging.Apply(model.Result{}, judging.Rules{}, model.JudgingInput{Try: true})
		So(errors.Is(err, model.ErrFormatMismatch), ShouldBeTrue)
	})
}

func TestApplyKeepsInvariants(t *testing.T) {
	Convey("Given random input sequences on counted formats", t, func() {
		rng := rand.New(rand.NewSource(7))
		bools := []*bool{nil, ptr(true), ptr(false)}

		for _, rules := range []judging.Rules{circuit, limited} {
			r := model.Result{}
			for i := 0; i < 500; i++ {
				in := model.JudgingInput{
					Try:  rng.Intn(2) == 0,
					Top:  bools[rng.Intn(3)],
					Zone: bools[rng.Intn(3)],
				}
				next, err := judging.Apply(r, rules, in)
				if err != nil {
					So(next, ShouldResemble, r)
					continue
				}
				r = next

				So(!r.Top || r.Zone, ShouldBeTrue)
				So(r.Zone || r.TopInTries == 0, ShouldBeTrue)
				So(r.TopInTries == 0 || r.Top, ShouldBeTrue)
				So(r.ZoneInTries == 0 || r.Zone, ShouldBeTrue)
				So(r.Tries, ShouldBeGreaterThanOrEqualTo, max(r.TopInTries, r.ZoneInTries))
				if rules.MaxTries > 0 {
					So(r.Tries, ShouldBeLessThanOrEqualTo, rules.MaxTries)
				}
			}
		}
	})
}

func TestApplyBulk(t *testing.T) {
	Convey("Given bulk entries for a circuit round", t, func() {
		cur := model.Result{}

		Convey("When a top in 3 tries is sent alone", func() {
			r, err := judging.ApplyBulk(cur, circuit, model.BulkEntry{Top: ptr(true), TopInTries: ptr(3)})

			Convey("Then the zone and tries are filled in", func() {
				So(err, ShouldBeNil)
				So(r.Zone, ShouldBeTrue)
				So(r.ZoneInTries, ShouldEqual, 3)
				So(r.Tries, ShouldEqual, 3)
			})
		})

		Convey("When tries are sent without a top", func() {
			_, err := judging.ApplyBulk(cur, circuit, model.BulkEntry{TopInTries: ptr(2)})

			Convey("Then the top is incoherent", func() {
				So(errors.Is(err, model.ErrIncoherentTopInTries), ShouldBeTrue)
			})
		})

		Convey("When the zone comes after the top", func() {
			_, err := judging.ApplyBulk(cur, circuit, model.BulkEntry{
				Top: ptr(true), TopInTries: ptr(2), Zone: ptr(true), ZoneInTries: ptr(4),
			})

			Convey("Then the zone is incoherent", func() {
				So(errors.Is(err, model.ErrIncoherentZoneInTries), ShouldBeTrue)
			})
		})

		Convey("When a top is sent with a negative zone", func() {
			_, err := judging.ApplyBulk(cur, circuit, model.BulkEntry{Top: ptr(true), Zone: ptr(false)})
			So(errors.Is(err, model.ErrIncoherentZoneInTries), ShouldBeTrue)
		})

		Convey("When the entry type is for another round type", func() {
			_, err := judging.ApplyBulk(cur, circuit, model.BulkEntry{Type: ptr(model.FormatUnlimitedContest), Top: ptr(true)})
			So(errors.Is(err, model.ErrWrongResultType), ShouldBeTrue)
		})
	})

	Convey("Given a limited contest bulk entry beyond the cap", t, func() {
		_, err := judging.ApplyBulk(model.Result{}, limited, model.BulkEntry{Top: ptr(true), TopInTries: ptr(5)})
		So(errors.Is(err, model.ErrMaxTriesReached), ShouldBeTrue)
	})

	Convey("Given an unlimited contest bulk entry", t, func() {
		r, err := judging.ApplyBulk(model.Result{}, unlimited, model.BulkEntry{Top: ptr(true)})
		So(err, ShouldBeNil)
		So(r.Top, ShouldBeTrue)

		_, err = judging.ApplyBulk(model.Result{}, unlimited, model.BulkEntry{Top: ptr(true), ZoneInTries: ptr(1)})
		So(errors.Is(err, model.ErrZoneNotCounted), ShouldBeTrue)
	})
}
