package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/internal/domain/filter"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newSession(remote *fakeRemote, rec *recorder, opts ...service.Option) *service.Session {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithLogger(logger.Nop()),
		service.WithRegistryOptions(
			service.WithRegistryLogger(logger.Nop()),
			service.WithPreflighter(nil),
		),
	}
	if rec != nil {
		base = append(base, service.WithStateListener(rec.listen))
	}
	return service.New(remote, append(base, opts...)...)
}

func TestSession_NoDataset(t *testing.T) {
	Convey("Given a started session with datasets but no selection", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120})
		s := newSession(fake, nil)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		s.LoadDatasets(ctx)

		Convey("Then every view shows the nothing-to-show state", func() {
			for _, kind := range model.AllViews() {
				st, err := s.ViewState(kind)
				So(err, ShouldBeNil)
				So(st.Status, ShouldEqual, model.StatusIdle)
				So(st.Empty(), ShouldBeTrue)
			}
		})

		Convey("When the filter and view change", func() {
			s.SetYear(ctx, 2024)
			So(s.SetMonth(ctx, 3), ShouldBeNil)
			So(s.SelectView(ctx, model.ViewTurnover), ShouldBeNil)

			Convey("Then nothing is fetched", func() {
				So(fake.totalCalls(), ShouldEqual, 0)
				st, _ := s.ViewState(model.ViewTurnover)
				So(st.Empty(), ShouldBeTrue)
			})
		})

		Convey("When asking for an unknown view", func() {
			_, err := s.ViewState(model.ViewKind("payroll"))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrUnknownView), ShouldBeTrue)
			})
		})
	})
}

func TestSession_SelectionRules(t *testing.T) {
	Convey("Given a session with two offered datasets", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120}, model.Dataset{ID: "d2", RowCount: 50})
		s := newSession(fake, nil)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		datasets := s.LoadDatasets(ctx)
		So(len(datasets), ShouldEqual, 2)

		Convey("When selecting an id the registry never offered", func() {
			err := s.SelectDataset(ctx, "d9")

			Convey("Then it is rejected and nothing is selected", func() {
				So(errors.Is(err, filter.ErrUnknownDataset), ShouldBeTrue)
				So(s.Snapshot().DatasetID, ShouldEqual, "")
				So(fake.totalCalls(), ShouldEqual, 0)
			})
		})

		Convey("When setting a month outside 1..12", func() {
			err := s.SetMonth(ctx, 13)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, filter.ErrInvalidMonth), ShouldBeTrue)
				_, ok := s.Snapshot().Filter.Month()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When applying a whole selection with an unknown dataset", func() {
			s.SetYear(ctx, 2023)
			err := s.ApplySelection(ctx, service.Selection{DatasetID: "d9", Year: intPtr(2024)})

			Convey("Then nothing changes", func() {
				So(errors.Is(err, filter.ErrUnknownDataset), ShouldBeTrue)
				year, _ := s.Snapshot().Filter.Year()
				So(year, ShouldEqual, 2023)
			})
		})

		Convey("When applying a whole selection", func() {
			rec := &recorder{}
			s2 := newSession(fake, rec)
			So(s2.Start(ctx), ShouldBeNil)
			defer func() { _ = s2.Stop(ctx) }()
			s2.LoadDatasets(ctx)
			err := s2.ApplySelection(ctx, service.Selection{DatasetID: "d2", Year: intPtr(2024), Month: intPtr(3)})
			waitStatus(s2, model.ViewOverview, model.StatusSuccess)

			Convey("Then only the final key is fetched", func() {
				So(err, ShouldBeNil)
				So(rec.loadings(key("d2", model.ViewOverview, intPtr(2024), intPtr(3))), ShouldEqual, 1)
				So(rec.loadings(key("d2", model.ViewOverview, nil, nil)), ShouldEqual, 0)
				So(fake.totalCalls(), ShouldEqual, 1)
			})
		})

		Convey("When replacing the filter with an invalid month", func() {
			s.SetYear(ctx, 2023)
			err := s.SetFilter(ctx, intPtr(2024), intPtr(0))

			Convey("Then neither field changes", func() {
				So(err, ShouldNotBeNil)
				year, _ := s.Snapshot().Filter.Year()
				So(year, ShouldEqual, 2023)
			})
		})
	})
}

func TestSession_FetchLifecycle(t *testing.T) {
	Convey("Given a session with d1 selected", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120}, model.Dataset{ID: "d2", RowCount: 50})
		fake.payload[model.ViewOverview] = overviewPayload
		rec := &recorder{}
		s := newSession(fake, rec)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		defer fake.releaseAll()
		s.LoadDatasets(ctx)

		all := key("d1", model.ViewOverview, nil, nil)
		So(s.SelectDataset(ctx, "d1"), ShouldBeNil)
		st := waitStatus(s, model.ViewOverview, model.StatusSuccess)
		So(st.Key, ShouldResemble, all)

		Convey("Then the first fetch went Loading then Success", func() {
			So(eventually(func() bool { return len(rec.forView(model.ViewOverview)) == 2 }), ShouldBeTrue)
			states := rec.forView(model.ViewOverview)
			So(states[0].Status, ShouldEqual, model.StatusLoading)
			So(states[1].Status, ShouldEqual, model.StatusSuccess)
			ov, ok := states[1].Result.(*service.Overview)
			So(ok, ShouldBeTrue)
			So(ov.Deltas, ShouldBeNil)
			So(ov.PeriodLabel, ShouldEqual, "Todo o período")
		})

		Convey("When the filter changes", func() {
			march := key("d1", model.ViewOverview, intPtr(2024), intPtr(3))
			fake.hold(march)
			So(s.SetFilter(ctx, intPtr(2024), intPtr(3)), ShouldBeNil)

			Convey("Then the previous result is cleared before the new one arrives", func() {
				cur, _ := s.ViewState(model.ViewOverview)
				So(cur.Status, ShouldEqual, model.StatusLoading)
				So(cur.Key, ShouldResemble, march)
				So(cur.Result, ShouldBeNil)

				fake.release(march)
				done := waitStatus(s, model.ViewOverview, model.StatusSuccess)
				So(done.Key, ShouldResemble, march)

				So(eventually(func() bool { return len(rec.forView(model.ViewOverview)) == 4 }), ShouldBeTrue)
				states := rec.forView(model.ViewOverview)
				So(states[len(states)-2].Status, ShouldEqual, model.StatusLoading)
				So(states[len(states)-2].Result, ShouldBeNil)
			})

			Convey("Then a single combined change issues a single fetch", func() {
				fake.release(march)
				waitStatus(s, model.ViewOverview, model.StatusSuccess)
				So(rec.loadings(march), ShouldEqual, 1)
				So(fake.callCount(march), ShouldEqual, 1)
			})
		})

		Convey("When repeating the same selections and switching views back", func() {
			So(s.SelectDataset(ctx, "d1"), ShouldBeNil)
			s.ClearYear(ctx)
			So(s.SelectView(ctx, model.ViewOverview), ShouldBeNil)
			So(s.SelectView(ctx, model.ViewHeadcount), ShouldBeNil)
			waitStatus(s, model.ViewHeadcount, model.StatusSuccess)
			So(s.SelectView(ctx, model.ViewOverview), ShouldBeNil)

			Convey("Then the unchanged overview key is not fetched again", func() {
				So(rec.loadings(all), ShouldEqual, 1)
				So(fake.callCount(all), ShouldEqual, 1)
				cur, _ := s.ViewState(model.ViewOverview)
				So(cur.Status, ShouldEqual, model.StatusSuccess)
			})
		})

		Convey("When the user reloads", func() {
			s.Reload(ctx)
			waitStatus(s, model.ViewOverview, model.StatusSuccess)

			Convey("Then the same key is fetched once more", func() {
				So(eventually(func() bool { return fake.callCount(all) == 2 }), ShouldBeTrue)
			})
		})

		Convey("When the filter changes while another view is active", func() {
			So(s.SelectView(ctx, model.ViewTurnover), ShouldBeNil)
			waitStatus(s, model.ViewTurnover, model.StatusSuccess)
			s.SetYear(ctx, 2023)

			Convey("Then the hidden overview drops its result", func() {
				cur, _ := s.ViewState(model.ViewOverview)
				So(cur.Status, ShouldEqual, model.StatusIdle)
				So(cur.Result, ShouldBeNil)
				So(cur.Empty(), ShouldBeFalse)
			})

			Convey("And showing it again fetches the new key", func() {
				So(s.SelectView(ctx, model.ViewOverview), ShouldBeNil)
				cur := waitStatus(s, model.ViewOverview, model.StatusSuccess)
				So(cur.Key, ShouldResemble, key("d1", model.ViewOverview, intPtr(2023), nil))
			})
		})

		Convey("When the dataset is cleared", func() {
			s.ClearDataset(ctx)

			Convey("Then the view returns to the nothing-to-show state", func() {
				cur, _ := s.ViewState(model.ViewOverview)
				So(cur.Empty(), ShouldBeTrue)
				So(cur.Result, ShouldBeNil)
			})
		})
	})
}

func TestSession_StaleResponses(t *testing.T) {
	Convey("Given a slow response for the first filter", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120})
		fake.payload[model.ViewOverview] = overviewPayload
		rec := &recorder{}
		s := newSession(fake, rec)
		So(s.Start(ctx), ShouldBeNil)
		s.LoadDatasets(ctx)

		k1 := key("d1", model.ViewOverview, intPtr(2024), nil)
		k2 := key("d1", model.ViewOverview, intPtr(2024), intPtr(3))
		s.SetYear(ctx, 2024)
		fake.hold(k1)
		So(s.SelectDataset(ctx, "d1"), ShouldBeNil)
		So(eventually(func() bool { return fake.callCount(k1) == 1 }), ShouldBeTrue)

		Convey("When the filter moves on and the old response arrives last", func() {
			So(s.SetMonth(ctx, 3), ShouldBeNil)
			cur := waitStatus(s, model.ViewOverview, model.StatusSuccess)
			So(cur.Key, ShouldResemble, k2)

			fake.release(k1)
			So(s.Stop(ctx), ShouldBeNil)

			Convey("Then the newer state is kept", func() {
				final, _ := s.ViewState(model.ViewOverview)
				So(final.Status, ShouldEqual, model.StatusSuccess)
				So(final.Key, ShouldResemble, k2)
				for _, st := range rec.forView(model.ViewOverview) {
					if st.Status == model.StatusSuccess {
						So(st.Key, ShouldResemble, k2)
					}
				}
			})
		})

		Convey("When the old response arrives while the new key is still loading", func() {
			fake.hold(k2)
			So(s.SetMonth(ctx, 3), ShouldBeNil)
			fake.release(k1)
			So(eventually(func() bool { return fake.callCount(k2) == 1 }), ShouldBeTrue)

			Convey("Then the view stays Loading for the new key", func() {
				So(eventually(func() bool {
					cur, _ := s.ViewState(model.ViewOverview)
					return cur.Status == model.StatusLoading && cur.Key == k2
				}), ShouldBeTrue)
				fake.release(k2)
				done := waitStatus(s, model.ViewOverview, model.StatusSuccess)
				So(done.Key, ShouldResemble, k2)
				So(s.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When the filter returns to a key that is still in flight", func() {
			fake.hold(k2)
			So(s.SetMonth(ctx, 3), ShouldBeNil)
			s.ClearMonth(ctx)

			Convey("Then the outstanding request is adopted instead of reissued", func() {
				fake.release(k1)
				done := waitStatus(s, model.ViewOverview, model.StatusSuccess)
				So(done.Key, ShouldResemble, k1)
				So(fake.callCount(k1), ShouldEqual, 1)
				fake.release(k2)
				So(s.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestSession_Failures(t *testing.T) {
	Convey("Given a session whose service fails some analyses", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120})
		fake.payload[model.ViewOverview] = overviewPayload
		s := newSession(fake, nil)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		s.LoadDatasets(ctx)
		So(s.SelectDataset(ctx, "d1"), ShouldBeNil)
		waitStatus(s, model.ViewOverview, model.StatusSuccess)

		Convey("When the turnover analysis fails", func() {
			fake.set(func(f *fakeRemote) {
				f.fail[model.ViewTurnover] = faults.Transport("analyze_turnover", 500, "boom")
			})
			So(s.SelectView(ctx, model.ViewTurnover), ShouldBeNil)
			st := waitStatus(s, model.ViewTurnover, model.StatusFailure)

			Convey("Then only that view fails", func() {
				So(errors.Is(st.Err, faults.ErrTransport), ShouldBeTrue)
				So(st.Reason, ShouldContainSubstring, "boom")
				ov, _ := s.ViewState(model.ViewOverview)
				So(ov.Status, ShouldEqual, model.StatusSuccess)
			})

			Convey("And it is not retried on its own", func() {
				So(fake.callCount(key("d1", model.ViewTurnover, nil, nil)), ShouldEqual, 1)
			})
		})

		Convey("When an analysis returns a malformed payload", func() {
			fake.set(func(f *fakeRemote) { f.payload[model.ViewHeadcount] = `[1,2,3]` })
			So(s.SelectView(ctx, model.ViewHeadcount), ShouldBeNil)
			st := waitStatus(s, model.ViewHeadcount, model.StatusFailure)

			Convey("Then it is a failure, not a success", func() {
				So(errors.Is(st.Err, service.ErrMalformedPayload), ShouldBeTrue)
				So(st.Result, ShouldBeNil)
			})
		})

		for _, status := range []int{500, 403} {
			Convey(fmt.Sprintf("When the risk analysis fails with status %d", status), func() {
				fake.set(func(f *fakeRemote) {
					f.fail[model.ViewRisk] = faults.Transport("analyze_risk", status, "internal detail")
				})
				So(s.SelectView(ctx, model.ViewRisk), ShouldBeNil)
				st := waitStatus(s, model.ViewRisk, model.StatusFailure)

				Convey("Then the entitlement message is shown instead of the error", func() {
					So(st.Reason, ShouldEqual, service.EntitlementMessage(comparison.PtBR))
					So(st.Reason, ShouldNotContainSubstring, "internal detail")
					So(errors.Is(st.Err, faults.ErrEntitlement), ShouldBeTrue)
				})
			})
		}
	})
}

func TestSession_Datasets(t *testing.T) {
	Convey("Given a session with d1 selected on the turnover view", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120}, model.Dataset{ID: "d2", RowCount: 50})
		s := newSession(fake, nil)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		s.LoadDatasets(ctx)
		So(s.SelectDataset(ctx, "d1"), ShouldBeNil)
		So(s.SelectView(ctx, model.ViewTurnover), ShouldBeNil)
		waitStatus(s, model.ViewTurnover, model.StatusSuccess)

		Convey("When a workbook is uploaded", func() {
			ds, err := s.Upload(ctx, "novo.xlsx", bytes.NewReader([]byte("content")))

			Convey("Then it becomes active and the view returns to overview", func() {
				So(err, ShouldBeNil)
				So(ds.ID, ShouldEqual, "d-new")
				snap := s.Snapshot()
				So(snap.DatasetID, ShouldEqual, "d-new")
				So(snap.ActiveView, ShouldEqual, model.ViewOverview)
				So(len(snap.Datasets), ShouldEqual, 3)
				st := waitStatus(s, model.ViewOverview, model.StatusSuccess)
				So(st.Key.DatasetID, ShouldEqual, "d-new")
				So(fake.callCount(key("d-new", model.ViewTurnover, nil, nil)), ShouldEqual, 0)
			})
		})

		Convey("When an upload fails remotely", func() {
			fake.set(func(f *fakeRemote) { f.uploadErr = faults.Transport("upload_dataset", 400, "bad file") })
			_, err := s.Upload(ctx, "novo.xlsx", bytes.NewReader([]byte("content")))

			Convey("Then nothing changes", func() {
				So(errors.Is(err, faults.ErrTransport), ShouldBeTrue)
				snap := s.Snapshot()
				So(snap.DatasetID, ShouldEqual, "d1")
				So(snap.ActiveView, ShouldEqual, model.ViewTurnover)
				So(len(snap.Datasets), ShouldEqual, 2)
			})
		})

		Convey("When the active dataset is removed", func() {
			err := s.Remove(ctx, "d1")

			Convey("Then the selection becomes absent", func() {
				So(err, ShouldBeNil)
				snap := s.Snapshot()
				So(snap.DatasetID, ShouldEqual, "")
				So(len(snap.Datasets), ShouldEqual, 1)
				st, _ := s.ViewState(model.ViewTurnover)
				So(st.Empty(), ShouldBeTrue)
			})
		})

		Convey("When the active dataset is already gone remotely", func() {
			fake.set(func(f *fakeRemote) { f.deleteErr = faults.Transport("delete_dataset", 404, "Dataset não encontrado") })
			err := s.Remove(ctx, "d1")

			Convey("Then the not-found is reported and the selection still clears", func() {
				So(errors.Is(err, faults.ErrNotFound), ShouldBeTrue)
				So(s.Snapshot().DatasetID, ShouldEqual, "")
			})
		})

		Convey("When removing fails for another reason", func() {
			fake.set(func(f *fakeRemote) { f.deleteErr = faults.Transport("delete_dataset", 503, "down") })
			err := s.Remove(ctx, "d1")

			Convey("Then the selection is kept", func() {
				So(errors.Is(err, faults.ErrTransport), ShouldBeTrue)
				So(s.Snapshot().DatasetID, ShouldEqual, "d1")
			})
		})

		Convey("When an inactive dataset is removed", func() {
			So(s.Remove(ctx, "d2"), ShouldBeNil)

			Convey("Then the selection stays", func() {
				So(s.Snapshot().DatasetID, ShouldEqual, "d1")
				So(len(s.Snapshot().Datasets), ShouldEqual, 1)
			})
		})

		Convey("When the dataset list cannot be fetched", func() {
			fake.set(func(f *fakeRemote) { f.listErr = faults.Transport("list_datasets", 502, "gateway") })
			datasets := s.LoadDatasets(ctx)

			Convey("Then the list is empty and the error is kept", func() {
				So(datasets, ShouldBeEmpty)
				snap := s.Snapshot()
				So(snap.DatasetsError, ShouldNotBeNil)
				So(snap.DatasetID, ShouldEqual, "")
			})
		})
	})
}

func TestSession_Health(t *testing.T) {
	Convey("Given a session", t, func() {
		ctx := context.Background()
		fake := newFakeRemote()
		s := newSession(fake, nil)

		Convey("When the service answers", func() {
			status, err := s.Health(ctx)

			Convey("Then it is healthy", func() {
				So(err, ShouldBeNil)
				So(status, ShouldEqual, service.HealthHealthy)
			})
		})

		Convey("When the service is down", func() {
			fake.set(func(f *fakeRemote) { f.healthErr = errors.New("connection refused") })
			status, err := s.Health(ctx)

			Convey("Then it reports an error", func() {
				So(err, ShouldNotBeNil)
				So(status, ShouldEqual, service.HealthError)
			})
		})
	})
}

// Run with -race: the setters below drive the session from many goroutines.
func TestSession_ConcurrentCallers(t *testing.T) {
	Convey("Given a session driven by concurrent callers", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120}, model.Dataset{ID: "d2", RowCount: 50})
		fake.payload[model.ViewOverview] = overviewPayload
		s := newSession(fake, &recorder{}, service.WithWorkerCount(4))
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		s.LoadDatasets(ctx)
		So(s.SelectDataset(ctx, "d1"), ShouldBeNil)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					switch (g + i) % 5 {
					case 0:
						ds := "d1"
						if i%2 == 1 {
							ds = "d2"
						}
						_ = s.ApplySelection(ctx, service.Selection{DatasetID: ds, Year: intPtr(2020 + i%4), Month: intPtr(1 + i%12)})
					case 1:
						s.SetYear(ctx, 2020+g)
					case 2:
						_ = s.SetMonth(ctx, 1+(g+i)%12)
					case 3:
						s.ClearMonth(ctx)
					default:
						_ = s.SelectView(ctx, model.ViewOverview)
						_ = s.Snapshot()
					}
				}
			}(g)
		}
		wg.Wait()

		Convey("Then the active view settles on the final selection", func() {
			snap := s.Snapshot()
			want := model.AnalysisRequest{DatasetID: snap.DatasetID, Filter: snap.Filter, Kind: snap.ActiveView}
			So(eventually(func() bool {
				st, _ := s.ViewState(snap.ActiveView)
				return st.Status == model.StatusSuccess && st.Key == want
			}), ShouldBeTrue)
		})
	})
}

func TestSession_Restart(t *testing.T) {
	Convey("Given a session that has been started and stopped", t, func() {
		ctx := context.Background()
		fake := newFakeRemote(model.Dataset{ID: "d1", RowCount: 120})
		fake.payload[model.ViewOverview] = overviewPayload
		s := newSession(fake, nil, service.WithWorkerCount(1))
		So(s.Start(ctx), ShouldBeNil)
		s.LoadDatasets(ctx)
		So(s.SelectDataset(ctx, "d1"), ShouldBeNil)
		waitStatus(s, model.ViewOverview, model.StatusSuccess)
		So(s.Stop(ctx), ShouldBeNil)

		Convey("When it is started again", func() {
			var err error
			So(func() { err = s.Start(ctx) }, ShouldNotPanic)
			So(err, ShouldBeNil)
			defer func() { _ = s.Stop(ctx) }()
			s.SetYear(ctx, 2023)

			Convey("Then fetches still run", func() {
				want := key("d1", model.ViewOverview, intPtr(2023), nil)
				So(eventually(func() bool {
					st, _ := s.ViewState(model.ViewOverview)
					return st.Status == model.StatusSuccess && st.Key == want
				}), ShouldBeTrue)
			})
		})

		Convey("When a fetch was queued at the moment it stopped", func() {
			So(s.Start(ctx), ShouldBeNil)
			defer func() { _ = s.Stop(ctx) }()
			k1 := key("d1", model.ViewOverview, intPtr(2024), nil)
			k2 := key("d1", model.ViewOverview, intPtr(2024), intPtr(3))
			fake.hold(k1)
			s.SetYear(ctx, 2024)
			So(eventually(func() bool { return fake.callCount(k1) == 1 }), ShouldBeTrue)
			So(s.SetMonth(ctx, 3), ShouldBeNil)
			go func() {
				time.Sleep(20 * time.Millisecond)
				fake.release(k1)
			}()
			So(s.Stop(ctx), ShouldBeNil)
			So(s.Start(ctx), ShouldBeNil)

			Convey("Then the next start dispatches it again", func() {
				So(eventually(func() bool {
					st, _ := s.ViewState(model.ViewOverview)
					return st.Status == model.StatusSuccess && st.Key == k2
				}), ShouldBeTrue)
			})
		})
	})
}
