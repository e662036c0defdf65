package testjudging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/crux/internal/adapters/catalog"
	"github.com/okian/crux/internal/adapters/http/api"
	service "github.com/okian/crux/internal/app"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const fixture = `
competitions:
  - id: 1
    name: Open
    rounds:
      - id: 10
        type: QUALIFIER
        ranking_type: CIRCUIT
        groups:
          - id: 100
            state: ONGOING
            boulders: [{id: 1000}, {id: 1001}, {id: 1002}]
            climbers: [{id: 1}, {id: 2}, {id: 3}, {id: 4}, {id: 5}]
      - id: 11
        type: SEMI_FINAL
        ranking_type: LIMITED_CONTEST
        max_tries: 3
        groups:
          - id: 110
            state: PENDING
            boulders: [{id: 1100}, {id: 1101}]
            climbers: [{id: 1}, {id: 2}, {id: 3}, {id: 6}]
      - id: 12
        type: FINAL
        ranking_type: UNLIMITED_CONTEST
        groups:
          - id: 120
            state: ONGOING
            boulders: [{id: 1200}, {id: 1201}, {id: 1202}]
            climbers: [{id: 1}, {id: 2}, {id: 3}]
`

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	svc := service.New(service.WithCatalog(cat), service.WithWorkerCount(2))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func testConfig(baseURL string, groupID int64) *Config {
	return &Config{
		BaseURL:   baseURL,
		GroupID:   groupID,
		Calls:     300,
		Workers:   4,
		Timeout:   5 * time.Second,
		Seed:      42,
		DupRate:   0.2,
		Open:      true,
		Tolerance: 1e-3,
	}
}

func yes() *bool { v := true; return &v }

func TestGenerate(t *testing.T) {
	Convey("Given a group and its round", t, func() {
		g := model.Group{
			ID:       1,
			Boulders: []model.Boulder{{ID: 10}, {ID: 11}},
			Climbers: []model.Climber{{ID: 1}, {ID: 2}, {ID: 3}},
		}
		r := model.Round{ID: 1, Format: model.FormatLimitedContest}

		Convey("When generating twice with the same seed", func() {
			a, err := Generate(g, r, 50, 7, 0.1)
			So(err, ShouldBeNil)
			b, err := Generate(g, r, 50, 7, 0.1)
			So(err, ShouldBeNil)

			Convey("Then the calls are identical", func() {
				So(a, ShouldResemble, b)
				So(len(a), ShouldEqual, 50)
			})

			Convey("Then every call targets the group and carries a field", func() {
				for i, c := range a {
					So(c.Seq, ShouldEqual, i)
					So(g.HasClimber(c.ClimberID), ShouldBeTrue)
					_, ok := g.Boulder(c.BoulderID)
					So(ok, ShouldBeTrue)
					So(c.Input(g.ID).HasField(), ShouldBeTrue)
					So(c.RequestID, ShouldNotBeEmpty)
				}
			})
		})

		Convey("When the seed changes", func() {
			a, _ := Generate(g, r, 50, 7, 0.1)
			b, _ := Generate(g, r, 50, 8, 0.1)

			Convey("Then the calls differ", func() {
				So(a, ShouldNotResemble, b)
			})
		})

		Convey("When the round is an unlimited contest", func() {
			r.Format = model.FormatUnlimitedContest
			calls, err := Generate(g, r, 100, 3, 0)
			So(err, ShouldBeNil)

			Convey("Then only tops are judged", func() {
				for _, c := range calls {
					So(c.Try, ShouldBeFalse)
					So(c.Zone, ShouldBeNil)
					So(c.Top, ShouldNotBeNil)
				}
			})
		})

		Convey("When the group has no climbers", func() {
			g.Climbers = nil
			_, err := Generate(g, r, 10, 1, 0)

			Convey("Then it fails", func() {
				So(errors.Is(err, ErrEmptyGroup), ShouldBeTrue)
			})
		})
	})
}

func TestReplay(t *testing.T) {
	Convey("Given a limited contest capped at two tries", t, func() {
		r := model.Round{Format: model.FormatLimitedContest, MaxTries: 2}
		calls := []Call{
			{Seq: 0, ClimberID: 1, BoulderID: 10, Try: true, RequestID: "a"},
			{Seq: 1, ClimberID: 1, BoulderID: 10, Try: true, RequestID: "a"},
			{Seq: 2, ClimberID: 1, BoulderID: 10, Try: true, Top: yes(), RequestID: "b"},
			{Seq: 3, ClimberID: 1, BoulderID: 10, Try: true, RequestID: "c"},
			{Seq: 4, ClimberID: 2, BoulderID: 10, Zone: yes()},
		}

		Convey("When the calls are replayed", func() {
			results, outcomes := Replay(r, 5, nil, calls)

			Convey("Then duplicates and capped tries leave no trace", func() {
				So(outcomes, ShouldResemble, []Outcome{
					OutcomeApplied, OutcomeDuplicate, OutcomeApplied, OutcomeRejected, OutcomeApplied,
				})
				got := results[model.ResultKey{GroupID: 5, BoulderID: 10, ClimberID: 1}]
				So(got.Tries, ShouldEqual, 2)
				So(got.Top, ShouldBeTrue)
				So(got.TopInTries, ShouldEqual, 2)
				So(got.Zone, ShouldBeTrue)
			})

			Convey("Then a zone without tries is kept", func() {
				got := results[model.ResultKey{GroupID: 5, BoulderID: 10, ClimberID: 2}]
				So(got.Zone, ShouldBeTrue)
				So(got.Tries, ShouldEqual, 0)
			})
		})

		Convey("When a baseline result exists", func() {
			key := model.ResultKey{GroupID: 5, BoulderID: 10, ClimberID: 1}
			base := []model.Result{{ResultKey: key, Tries: 2}}
			results, outcomes := Replay(r, 5, base, calls[:1])

			Convey("Then the replay starts from it", func() {
				So(outcomes, ShouldResemble, []Outcome{OutcomeRejected})
				So(results[key].Tries, ShouldEqual, 2)
			})
		})
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running crux server", t, func() {
		srv := startServer(t)

		Convey("When a circuit group is driven", func() {
			cfg := testConfig(srv.URL, 100)
			cfg.OutputFile = filepath.Join(t.TempDir(), "calls", "circuit.json")
			stats, err := Run(ctx, cfg)

			Convey("Then results and ranking match the local replay", func() {
				So(err, ShouldBeNil)
				So(stats.CallsSubmitted, ShouldEqual, 300)
				So(stats.CallsFailed, ShouldEqual, 0)
				So(stats.CallsApplied+stats.CallsDuplicate+stats.CallsRejected, ShouldEqual, 300)
				So(stats.CallsDuplicate, ShouldBeGreaterThan, 0)
				So(stats.RankedClimbers, ShouldBeGreaterThan, 0)
				So(cfg.OutputFile, ShouldNotBeEmpty)
			})
		})

		Convey("When a pending limited contest group is driven", func() {
			stats, err := Run(ctx, testConfig(srv.URL, 110))

			Convey("Then it is opened and verified", func() {
				So(err, ShouldBeNil)
				So(stats.CallsFailed, ShouldEqual, 0)
				So(stats.CallsApplied, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When an unlimited contest final is driven", func() {
			stats, err := Run(ctx, testConfig(srv.URL, 120))

			Convey("Then it is verified", func() {
				So(err, ShouldBeNil)
				So(stats.CallsRejected, ShouldEqual, 0)
			})
		})

		Convey("When the group stays pending", func() {
			cfg := testConfig(srv.URL, 110)
			cfg.Open = false
			_, err := Run(ctx, cfg)

			Convey("Then the run stops before submitting", func() {
				So(errors.Is(err, ErrGroupClosed), ShouldBeTrue)
			})
		})

		Convey("When the group does not exist", func() {
			_, err := Run(ctx, testConfig(srv.URL, 999))

			Convey("Then the lookup fails", func() {
				So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			})
		})
	})
}
