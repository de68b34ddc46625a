package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialised with defaults", func() {
			err := Init()

			Convey("Then Get returns a usable logger", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialised with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat(FormatJSON), WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("debug"), ShouldBeNil)
		defer func() { _ = SetLevelString("info") }()

		Convey("When logging with fields through a named logger", func() {
			Named("registry").Info(context.Background(), "datasets listed",
				Int("count", 2),
				Bool("cached", false),
				Duration("took", 1500*time.Millisecond),
				Error(errors.New("boom")),
			)

			var line map[string]any
			err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line)

			Convey("Then the record carries message, component, fields and source", func() {
				So(err, ShouldBeNil)
				So(line["msg"], ShouldEqual, "datasets listed")
				So(line["component"], ShouldEqual, "registry")
				So(line["count"], ShouldEqual, float64(2))
				So(line["cached"], ShouldEqual, false)
				So(line["took"], ShouldEqual, "1.5s")
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a text logger at warn level", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("WARN"), ShouldBeNil)
		defer func() { _ = SetLevelString("info") }()

		Convey("When logging below and at the threshold", func() {
			ctx := context.Background()
			Get().Debug(ctx, "hidden debug")
			Get().Info(ctx, "hidden info")
			Get().Warn(ctx, "visible warn")

			Convey("Then only the warn record is written", func() {
				out := buf.String()
				So(strings.Contains(out, "hidden"), ShouldBeFalse)
				So(out, ShouldContainSubstring, "visible warn")
			})
		})

		Convey("When setting an unknown level", func() {
			err := SetLevelString("verbose")

			Convey("Then it should be rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
