package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"attendance-cloud/internal/config"
	"attendance-cloud/internal/logging"
	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog"
)

const AttendCtlVersion = "0.1.0"

const usage = `Attendance sync control.

Without --redis or --database, attendctl talks to the server named by --server
or by serverUrl in APP_CONFIG.

Usage:
    attendctl watch [options]
    attendctl add-student [options] <student_id> <name>
    attendctl update-student [options] <student_id> <field=value>...
    attendctl delete-student [options] <student_id>
    attendctl check-in [options] <student_id>
    attendctl request-leave [options] <student_id> <type> <reason> --start=<date>
    attendctl update-leave [options] <leave_id> <status>
    attendctl set-config [options] <key=value>...
    attendctl clear-config [options]
    attendctl set-logo <logo>
    attendctl mint-token [--secret=<secret>] <uid>
    attendctl -h | --help
    attendctl --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --server=<url>         Server URL.
    --redis=<addr>         Use a redis backend directly.
    --database=<url>       Use a postgres backend directly.
    --secret=<secret>      Token secret for direct backends and mint-token [default: ].
    --app=<app_id>         Application id [default: ].
    --token=<token>        Custom sign-in token [default: ].
    --name=<name>          Student name for check-in and leave records [default: ].
    --classroom=<c>        Classroom of a new student [default: ].
    --number=<n>           Roll number of a new student [default: ].
    --phone=<p>            Phone of a new student [default: ].
    --status=<status>      Check-in status; derived from lateTime when empty [default: ].
    --note=<note>          Check-in note [default: ].
    --lat=<lat>            Check-in latitude [default: 0].
    --lng=<lng>            Check-in longitude [default: 0].
    --start=<date>         First day of a leave.
    --end=<date>           Last day of a leave [default: ].`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], AttendCtlVersion)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if app, _ := opts.String("--app"); app != "" {
		cfg.AppID = app
	}
	if token, _ := opts.String("--token"); token != "" {
		cfg.InitialAuthToken = token
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts docopt.Opts, cfg config.ClientConfig, logger zerolog.Logger) error {
	switch {
	case flag(opts, "set-logo"):
		return setLogo(opts, cfg)
	case flag(opts, "mint-token"):
		return mintToken(opts)
	}

	sess, err := openSession(ctx, opts, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch {
	case flag(opts, "watch"):
		return watch(ctx, sess)
	case flag(opts, "add-student"):
		return addStudent(ctx, opts, sess)
	case flag(opts, "update-student"):
		return updateStudent(ctx, opts, sess)
	case flag(opts, "delete-student"):
		return deleteStudent(ctx, opts, sess)
	case flag(opts, "check-in"):
		return checkIn(ctx, opts, sess)
	case flag(opts, "request-leave"):
		return requestLeave(ctx, opts, sess)
	case flag(opts, "update-leave"):
		return updateLeave(ctx, opts, sess)
	case flag(opts, "set-config"):
		return setConfig(ctx, opts, sess)
	case flag(opts, "clear-config"):
		return sess.Sync.ClearAllData(ctx)
	}
	return fmt.Errorf("no command given")
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}
