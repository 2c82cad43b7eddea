package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func rostr(args ...string) result {
	var out, errOut bytes.Buffer
	code := run(context.Background(), append([]string{"--no-color"}, args...), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func TestCommandLine(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROSTR_DATA_DIR", dir)
	t.Setenv("ROSTR_METRICS_FILE", filepath.Join(dir, "rostr.prom"))

	convey.Convey("Given a fresh data directory", t, func() {
		convey.Convey("When help is requested", func() {
			res := rostr("help")

			convey.Convey("Then usage is printed", func() {
				convey.So(res.code, convey.ShouldEqual, exitOK)
				convey.So(res.stdout, convey.ShouldContainSubstring, "report timeline")
			})
		})

		convey.Convey("When the command is unknown", func() {
			res := rostr("person hire")

			convey.Convey("Then it is a usage error", func() {
				convey.So(res.code, convey.ShouldEqual, exitUsage)
				convey.So(res.stderr, convey.ShouldContainSubstring, "unknown command")
			})
		})

		convey.Convey("When a team is set up and staffed", func() {
			add := rostr("person", "add", "--name", "Ada Lovelace", "--email", "ada@example.com", "--skills", "go:4")
			convey.So(add.code, convey.ShouldEqual, exitOK)
			convey.So(add.stdout, convey.ShouldContainSubstring, "AdaL")

			convey.So(rostr("project", "add", "--name", "Apollo", "--status", "active").code, convey.ShouldEqual, exitOK)

			booked := rostr("allocate", "AdaL", "apollo", "--start", "2024-01-01", "--end", "2024-01-31", "--hours", "20")
			convey.So(booked.code, convey.ShouldEqual, exitOK)
			convey.So(booked.stdout, convey.ShouldContainSubstring, "allocated ada@example.com to apollo")

			convey.Convey("Then the current report shows half utilization", func() {
				res := rostr("report", "current", "--as-of", "2024-01-15")
				convey.So(res.code, convey.ShouldEqual, exitOK)
				convey.So(res.stdout, convey.ShouldContainSubstring, "Ada Lovelace")
				convey.So(res.stdout, convey.ShouldContainSubstring, "50.0%")
			})

			convey.Convey("Then the current report breaks hours down by project", func() {
				res := rostr("report", "current", "--as-of", "2024-01-15")
				convey.So(res.stdout, convey.ShouldContainSubstring, "apollo (20h)")
			})

			convey.Convey("Then the timeline shows free hours and time off", func() {
				convey.So(rostr("timeoff", "AdaL", "--start", "2024-01-10", "--end", "2024-01-12").code, convey.ShouldEqual, exitOK)

				res := rostr("report", "timeline", "--start", "2024-01-08", "--periods", "2", "--interval", "Week")
				convey.So(res.code, convey.ShouldEqual, exitOK)
				convey.So(res.stdout, convey.ShouldContainSubstring, "PTO")
				convey.So(res.stdout, convey.ShouldContainSubstring, "50.0% (20h free)")
			})

			convey.Convey("Then a lead booking is marked in the project list", func() {
				lead := rostr("allocate", "AdaL", "apollo", "--start", "2024-02-01", "--end", "2024-02-29", "--hours", "5", "--lead")
				convey.So(lead.code, convey.ShouldEqual, exitOK)

				res := rostr("project", "list")
				convey.So(res.code, convey.ShouldEqual, exitOK)
				convey.So(res.stdout, convey.ShouldContainSubstring, "AdaL*")
			})

			convey.Convey("Then people are listed with their skills", func() {
				res := rostr("person", "list", "--skill", "go")
				convey.So(res.code, convey.ShouldEqual, exitOK)
				convey.So(res.stdout, convey.ShouldContainSubstring, "go (4)")
			})

			convey.Convey("Then a metrics textfile is left behind", func() {
				data, err := os.ReadFile(filepath.Join(dir, "rostr.prom"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldContainSubstring, "rostr_")
			})

			convey.Convey("Then invalid time-off is not applied", func() {
				res := rostr("timeoff", "ada@example.com", "--start", "2024-01-12", "--end", "2024-01-10")
				convey.So(res.code, convey.ShouldEqual, exitNotApplied)
				convey.So(res.stderr, convey.ShouldContainSubstring, "no changes were made")
			})

			convey.Convey("Then a missing required flag is a usage error", func() {
				res := rostr("timeoff", "ada@example.com")
				convey.So(res.code, convey.ShouldEqual, exitUsage)
			})

			convey.Convey("Then a damaged journal asks for attention", func() {
				path := filepath.Join(dir, "journal.jsonl")
				data, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(os.WriteFile(path, data[:len(data)-5], 0o644), convey.ShouldBeNil)

				res := rostr("person", "list")
				convey.So(res.code, convey.ShouldEqual, exitStoreAttention)
				convey.So(res.stderr, convey.ShouldContainSubstring, "rostr rebuild")
			})

			convey.Reset(func() {
				_ = os.Remove(filepath.Join(dir, "journal.jsonl"))
				_ = os.Remove(filepath.Join(dir, "manifest.json"))
			})
		})
	})
}

func TestParseSkills(t *testing.T) {
	convey.Convey("Given a skills flag", t, func() {
		convey.Convey("Then names and optional levels are read", func() {
			skills, err := parseSkills("go:4, sql ,docker:2,")
			convey.So(err, convey.ShouldBeNil)
			convey.So(skills, convey.ShouldResemble, map[string]int{"go": 4, "sql": 0, "docker": 2})
		})

		convey.Convey("Then a non-numeric level is rejected", func() {
			_, err := parseSkills("go:expert")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
