package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"casino-miniapp/internal/app"
	"casino-miniapp/internal/config"
	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/notify"
	"casino-miniapp/internal/session"
)

// usageError is a command-line mistake, reported with the usage text. Errors
// from the client itself have already been shown as notifications.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	if err := run(); err != nil {
		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(os.Stderr, "casino: %v\n\n", uerr)
			printHelp()
		}
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var configPath string
	flagSet := pflag.NewFlagSet("casino", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("CASINO_CONFIG"), "path to the client YAML config")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp()
			return nil
		}
		return usagef("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp()
		return nil
	}

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "casino: %v\n", err)
		return err
	}
	log.SetLevel(cfg.Level())
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "casino: %v\n", err)
		return err
	}
	defer closeStore()

	sess := session.New(store)
	if err := sess.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "casino: %v\n", err)
		return err
	}

	terminal := notify.NewTerminal(os.Stdout, cfg.Locale)
	api := ledger.NewClient(cfg.Endpoints, cfg.Timeouts.Request, app.SessionCredentials(sess))
	client := app.New(api, sess, terminal, app.Options{
		SpinDelay:    cfg.Roulette.SpinDelay,
		PollInterval: cfg.Staff.PollInterval,
		ExchangeRate: decimal.NewFromFloat(cfg.ExchangeRate),
		Locale:       cfg.Locale,
	})

	cmd := &command{client: client, terminal: terminal, in: os.Stdin, out: os.Stdout}
	return cmd.dispatch(ctx, flagSet.Arg(0), flagSet.Args()[1:])
}

func openStore(ctx context.Context, cfg *config.Client) (session.Store, func(), error) {
	if cfg.Session.Backend == config.SessionBackendRedis {
		store, err := session.NewRedisStore(ctx, cfg.Session.RedisAddr, cfg.Session.RedisPass, cfg.Session.RedisDB, cfg.Session.Profile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return session.NewFileStore(cfg.Session.Path), func() {}, nil
}

func printHelp() {
	fmt.Fprint(os.Stderr, `casino - terminal client for the casino ledger

Usage:
  casino [--config FILE] COMMAND [ARGS]

Account:
  register NAME PIN          create an account and log in
  login NAME PIN             log in
  logout                     forget the saved session
  balance                    fetch and show both balances

Wallet:
  deposit AMOUNT             ask staff to credit AMOUNT RUB
  withdraw AMOUNT            ask staff to pay out AMOUNT RUB
  requests                   list your deposit and withdraw requests
  exchange AMOUNT [--from RUB|USD] [--preview]

Games:
  roulette BET               spin once
  mines [BET] [--mines N]    play a mines round interactively; resumes an
                             open round, otherwise BET starts a new one

Staff:
  staff queue [--watch]      show pending requests
  staff decide ID approve|reject
  staff adjust (--id N | --name NAME) --amount X [--op add|subtract] [--currency RUB|USD]
`)
}
