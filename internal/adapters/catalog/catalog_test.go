package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const fixtureYAML = `
competitions:
  - id: 1
    name: Open
    rounds:
      - id: 10
        name: Qualifier
        type: qualifier
        ranking_type: LIMITED_CONTEST
        max_tries: 5
        groups:
          - id: 100
            name: A
            state: ongoing
            boulders:
              - {id: 1000, name: B1}
              - {id: 1001, name: B2, judges: [7]}
            climbers:
              - {id: 1, first_name: Ada, last_name: L}
              - {id: 2, first_name: Bo, last_name: K}
      - id: 11
        name: Final
        type: FINAL
        ranking_type: CIRCUIT
        groups:
          - id: 110
`

func boulderIDs(g model.Group) []int64 {
	ids := make([]int64, len(g.Boulders))
	for i, b := range g.Boulders {
		ids[i] = b.ID
	}
	return ids
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given a YAML fixture", t, func() {
		c, err := Load(strings.NewReader(fixtureYAML))
		So(err, ShouldBeNil)

		Convey("Then the hierarchy is registered in order", func() {
			comp, err := c.Competition(ctx, 1)
			So(err, ShouldBeNil)
			So(comp.RoundIDs, ShouldResemble, []int64{10, 11})

			r, err := c.Round(ctx, 11)
			So(err, ShouldBeNil)
			So(r.Index, ShouldEqual, 1)
			So(r.Type, ShouldEqual, model.RoundFinal)
			So(r.Format, ShouldEqual, model.FormatCircuit)
			So(r.GroupIDs, ShouldResemble, []int64{110})

			g, err := c.Group(ctx, 100)
			So(err, ShouldBeNil)
			So(g.State, ShouldEqual, model.GroupOngoing)
			So(g.Boulders[1].Index, ShouldEqual, 1)
			So(g.Boulders[1].GroupID, ShouldEqual, int64(100))
			So(g.ClimberIDs(), ShouldResemble, []int64{1, 2})

			pending, _ := c.Group(ctx, 110)
			So(pending.State, ShouldEqual, model.GroupPending)
		})

		Convey("Then returned groups are copies", func() {
			g, _ := c.Group(ctx, 100)
			g.Boulders[0].Name = "changed"
			again, _ := c.Group(ctx, 100)
			So(again.Boulders[0].Name, ShouldEqual, "B1")
		})
	})

	Convey("Given a fixture with an unknown ranking type", t, func() {
		_, err := Load(strings.NewReader("competitions: [{id: 1, rounds: [{id: 2, ranking_type: POINTS}]}]"))

		Convey("Then loading fails", func() {
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given an empty fixture", t, func() {
		c, err := Load(strings.NewReader(""))

		Convey("Then the catalog is empty", func() {
			So(err, ShouldBeNil)
			So(c.Stats()["groups"], ShouldEqual, 0)
		})
	})
}

func TestGroupLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pending group", t, func() {
		c, err := Load(strings.NewReader(fixtureYAML))
		So(err, ShouldBeNil)

		Convey("When it is started then ended", func() {
			_, err1 := c.SetGroupState(ctx, 110, model.GroupOngoing)
			g, err2 := c.SetGroupState(ctx, 110, model.GroupEnded)

			Convey("Then both transitions succeed", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(g.State, ShouldEqual, model.GroupEnded)
			})

			Convey("And moving back is rejected", func() {
				_, err := c.SetGroupState(ctx, 110, model.GroupOngoing)
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When an unknown group is changed", func() {
			_, err := c.SetGroupState(ctx, 999, model.GroupOngoing)

			Convey("Then it is not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestBoulderNumbering(t *testing.T) {
	ctx := context.Background()

	Convey("Given a group with two boulders", t, func() {
		c, err := Load(strings.NewReader(fixtureYAML))
		So(err, ShouldBeNil)

		Convey("When a boulder is inserted at index 1", func() {
			g, err := c.InsertBoulder(ctx, 100, 1, model.Boulder{Name: "new"})

			Convey("Then it gets a fresh id and neighbours shift", func() {
				So(err, ShouldBeNil)
				So(boulderIDs(g), ShouldResemble, []int64{1000, 1002, 1001})
				for i, b := range g.Boulders {
					So(b.Index, ShouldEqual, i)
					So(b.GroupID, ShouldEqual, int64(100))
				}
			})
		})

		Convey("When a boulder is appended at the end", func() {
			g, err := c.InsertBoulder(ctx, 100, 2, model.Boulder{ID: 5000})

			Convey("Then it takes the last index", func() {
				So(err, ShouldBeNil)
				So(g.Boulders[2].ID, ShouldEqual, int64(5000))
				So(g.Boulders[2].Index, ShouldEqual, 2)
			})
		})

		Convey("When the index is out of range", func() {
			_, err := c.InsertBoulder(ctx, 100, 3, model.Boulder{})
			_, errNeg := c.InsertBoulder(ctx, 100, -1, model.Boulder{})

			Convey("Then the insertion is rejected", func() {
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
				So(errors.Is(errNeg, model.ErrInvalidTransition), ShouldBeTrue)
				g, _ := c.Group(ctx, 100)
				So(g.Boulders, ShouldHaveLength, 2)
			})
		})

		Convey("When an existing boulder id is reused", func() {
			_, err := c.InsertBoulder(ctx, 110, 0, model.Boulder{ID: 1000})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrDuplicateID), ShouldBeTrue)
			})
		})

		Convey("When the first boulder is removed", func() {
			g, err := c.RemoveBoulder(ctx, 100, 1000)

			Convey("Then the next one moves to index 0", func() {
				So(err, ShouldBeNil)
				So(boulderIDs(g), ShouldResemble, []int64{1001})
				So(g.Boulders[0].Index, ShouldEqual, 0)
			})
		})

		Convey("When a boulder of another group is removed", func() {
			_, err := c.RemoveBoulder(ctx, 110, 1000)

			Convey("Then it is a membership error", func() {
				So(errors.Is(err, model.ErrMembership), ShouldBeTrue)
			})
		})
	})
}

func TestRemoveClimber(t *testing.T) {
	ctx := context.Background()

	Convey("Given a roster of two climbers", t, func() {
		c, err := Load(strings.NewReader(fixtureYAML))
		So(err, ShouldBeNil)

		Convey("When one is removed", func() {
			g, err := c.RemoveClimber(ctx, 100, 1)

			Convey("Then only the other remains", func() {
				So(err, ShouldBeNil)
				So(g.ClimberIDs(), ShouldResemble, []int64{2})
			})

			Convey("And removing them again fails", func() {
				_, err := c.RemoveClimber(ctx, 100, 1)
				So(errors.Is(err, model.ErrClimberNotInGroup), ShouldBeTrue)
			})
		})
	})
}
