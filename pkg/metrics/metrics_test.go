package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a dedicated registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with domain defaults", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "people_analytics")
				So(manager.subsystem, ShouldEqual, "dashboard")
				So(manager.enabled, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithMetricsEnabled(false),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.uploads.WithLabelValues("accepted").Inc()

			Convey("Then collectors are registered under the custom names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_ns_test_sub_pfx_uploads_total")
				So(manager.enabled, ShouldBeFalse)
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
			})
		})

		Convey("When options receive empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithCustomLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "people_analytics")
				So(manager.subsystem, ShouldEqual, "dashboard")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics helpers", t, func() {
		Convey("When recording fetch lifecycle metrics", func() {
			before := testutil.ToFloat64(globalManager.staleResponses.WithLabelValues("overview"))
			RecordFetchTransition("overview", "loading")
			RecordFetchTransition("overview", "success")
			RecordStaleResponse("overview")
			RecordDuplicateSuppressed("turnover")
			RecordFetchLatency("overview", "success", 42)
			UpdateInFlightFetches(3)

			Convey("Then counters and gauges reflect the calls", func() {
				So(testutil.ToFloat64(globalManager.staleResponses.WithLabelValues("overview")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.inFlightFetches), ShouldEqual, 3)
			})
		})

		Convey("When recording registry and transport metrics", func() {
			So(func() {
				RecordRemoteRequest("datasets", "GET", "200", 12.5)
				RecordUpload("rejected")
				UpdateDatasetCount(2)
				UpdateQueueSize(1)
				UpdateQueueCapacity(64)
				RecordQueueEnqueueError("queue_full")
				UpdateWorkerCount(4)
				RecordHTTPRequest("state", "GET", "200", 1)
				RecordErrorByComponent("registry", "list_failed")
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.datasetCount), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
			})
		})

		Convey("When reading the registry", func() {
			registry := GetRegistry()

			Convey("Then it is the custom registry", func() {
				So(registry, ShouldEqual, customRegistry)
			})
		})
	})
}
