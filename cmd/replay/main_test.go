package main

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRootCommand(t *testing.T) {
	Convey("Given the replay command", t, func() {
		cmd := newRootCommand()
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)
		cmd.SetOut(&stderr)

		Convey("Then the documented flags should exist with their defaults", func() {
			f := cmd.Flags()
			So(f.Lookup("url").DefValue, ShouldEqual, "http://localhost:9080")
			So(f.Lookup("records").DefValue, ShouldEqual, "10000")
			So(f.Lookup("blank-rate").DefValue, ShouldEqual, "0.2")
			So(f.Lookup("edge-cases").DefValue, ShouldEqual, "true")
		})

		Convey("When workers is zero", func() {
			cmd.SetArgs([]string{"--workers", "0"})
			So(cmd.Execute(), ShouldNotBeNil)
		})

		Convey("When the service is unreachable", func() {
			cmd.SetArgs([]string{"--url", "http://127.0.0.1:1", "--records", "1", "--timeout", "200ms"})
			err := cmd.Execute()

			Convey("Then the run should fail and say so", func() {
				So(err, ShouldNotBeNil)
				So(stderr.String(), ShouldContainSubstring, "replay failed")
			})
		})
	})
}
