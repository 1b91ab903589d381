package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"casino-miniapp/internal/app"
	"casino-miniapp/internal/games"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/notify"
	"casino-miniapp/internal/staff"
)

type command struct {
	client   *app.Client
	terminal *notify.Terminal
	in       io.Reader
	out      io.Writer
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "register", "login":
		if len(args) != 2 {
			return usagef("%s needs NAME and PIN", name)
		}
		if name == "register" {
			_, err := c.client.Register(ctx, args[0], args[1])
			return err
		}
		_, err := c.client.Login(ctx, args[0], args[1])
		return err
	case "logout":
		return c.client.Logout(ctx)
	case "balance":
		return c.balance(ctx)
	case "deposit":
		return c.request(ctx, models.RequestTypeDeposit, args)
	case "withdraw":
		return c.request(ctx, models.RequestTypeWithdraw, args)
	case "requests":
		return c.requests(ctx)
	case "exchange":
		return c.exchange(ctx, args)
	case "roulette":
		return c.roulette(ctx, args)
	case "mines":
		return c.mines(ctx, args)
	case "staff":
		return c.staff(ctx, args)
	default:
		return usagef("unknown command %q", name)
	}
}

func parseAmount(field string, args []string) (decimal.Decimal, error) {
	if len(args) != 1 {
		return decimal.Zero, usagef("%s is required", field)
	}
	amount, err := models.ParseAmount(field, args[0])
	if err != nil {
		return decimal.Zero, usagef("%v", err)
	}
	return amount, nil
}

func (c *command) balance(ctx context.Context) error {
	b, err := c.client.SyncBalance(ctx)
	if err != nil {
		return err
	}
	p := c.terminal.Printer()
	line := c.terminal.Amount(b.RUB, models.CurrencyRUB) + " / " + c.terminal.Amount(b.USD, models.CurrencyUSD)
	fmt.Fprintln(c.out, p.Sprintf("Balance: %s", line))
	return nil
}

func (c *command) request(ctx context.Context, typ models.RequestType, args []string) error {
	amount, err := parseAmount("amount", args)
	if err != nil {
		return err
	}
	_, err = c.client.SubmitRequest(ctx, typ, amount)
	return err
}

func (c *command) requests(ctx context.Context) error {
	list, err := c.client.MyRequests(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No requests")
		return nil
	}
	for _, req := range list {
		fmt.Fprintf(c.out, "#%-5d %-8s %-16s %-8s %s\n",
			req.ID, req.Type, c.terminal.Amount(req.Amount, req.Currency), req.Status,
			req.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (c *command) exchange(ctx context.Context, args []string) error {
	var from string
	var preview bool
	flags := pflag.NewFlagSet("exchange", pflag.ContinueOnError)
	flags.StringVar(&from, "from", string(models.CurrencyRUB), "currency to sell")
	flags.BoolVar(&preview, "preview", false, "show the conversion without exchanging")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}

	currency, err := models.ParseCurrency(strings.ToUpper(from))
	if err != nil {
		return usagef("%v", err)
	}
	amount, err := parseAmount("amount", flags.Args())
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, c.client.PreviewExchange(amount, currency))
	if preview {
		return nil
	}
	_, err = c.client.Exchange(ctx, amount, currency)
	return err
}

func (c *command) roulette(ctx context.Context, args []string) error {
	bet, err := parseAmount("bet", args)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Spinning...")
	_, err = c.client.Spin(ctx, bet)
	return err
}

func (c *command) mines(ctx context.Context, args []string) error {
	var count int
	flags := pflag.NewFlagSet("mines", pflag.ContinueOnError)
	flags.IntVarP(&count, "mines", "m", 3, "number of mines on the grid")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	// a round left open by an earlier run is picked up before a new bet
	round, resumed, err := c.client.ResumeMines(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		bet, err := parseAmount("bet", flags.Args())
		if err != nil {
			return err
		}
		if round, err = c.client.StartMines(ctx, bet, count); err != nil {
			return err
		}
	}
	c.printGrid(round)
	fmt.Fprintln(c.out, "Enter a cell 0-24 to reveal, c to cash out.")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "c", "cashout":
			res, err := c.client.CashOut(ctx)
			if err != nil {
				continue
			}
			c.printGrid(res.Round)
			return nil
		}

		cell, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintln(c.out, "Enter a cell number or c")
			continue
		}
		res, err := c.client.RevealCell(ctx, cell)
		if err != nil {
			continue
		}
		c.printGrid(res.Round)
		if res.Round.State.Terminal() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// input closed with the round still open; the next mines run resumes it
	if c.client.Mines().State() == games.MinesActive {
		fmt.Fprintln(c.out, "Round left open, run mines again to continue")
	}
	return nil
}

func (c *command) printGrid(round games.MinesRound) {
	mined := make(map[int]bool, len(round.Mines))
	for _, m := range round.Mines {
		mined[m] = true
	}

	for row := 0; row < 5; row++ {
		cells := make([]string, 5)
		for col := 0; col < 5; col++ {
			i := row*5 + col
			switch {
			case round.Revealed[i] && mined[i]:
				cells[col] = " X"
			case round.Revealed[i]:
				cells[col] = " o"
			case round.State.Terminal() && mined[i]:
				cells[col] = " *"
			default:
				cells[col] = fmt.Sprintf("%2d", i)
			}
		}
		fmt.Fprintln(c.out, strings.Join(cells, " "))
	}
	fmt.Fprintf(c.out, "%s  x%s  payout %s\n", round.State, round.Multiplier.StringFixed(2),
		c.terminal.Amount(round.PotentialPayout(), models.PrimaryCurrency))
}

func (c *command) staff(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usagef("staff needs a subcommand: queue, decide or adjust")
	}
	switch args[0] {
	case "queue":
		return c.staffQueue(ctx, args[1:])
	case "decide":
		return c.staffDecide(ctx, args[1:])
	case "adjust":
		return c.staffAdjust(ctx, args[1:])
	default:
		return usagef("unknown staff command %q", args[0])
	}
}

func (c *command) staffQueue(ctx context.Context, args []string) error {
	var watch bool
	flags := pflag.NewFlagSet("staff queue", pflag.ContinueOnError)
	flags.BoolVarP(&watch, "watch", "w", false, "keep polling until interrupted")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}

	if watch {
		stop, err := c.client.WatchQueue(ctx, c.printQueue)
		if err != nil {
			return err
		}
		defer stop()
		<-ctx.Done()
		return nil
	}

	queue, err := c.client.Staff()
	if err != nil {
		c.terminal.Error(err)
		return err
	}
	if err := queue.Refresh(ctx); err != nil {
		c.terminal.Error(err)
		return err
	}
	c.printQueue(queue.Requests())
	return nil
}

func (c *command) printQueue(list []models.PendingRequest) {
	fmt.Fprintf(c.out, "%d pending\n", len(list))
	for _, req := range list {
		fmt.Fprintf(c.out, "#%-5d %-20s %-8s %s\n", req.ID, req.FullName, req.Type,
			c.terminal.Amount(req.Amount, req.Currency))
	}
}

func (c *command) staffDecide(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usagef("staff decide needs ID and approve|reject")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usagef("invalid request id %q", args[0])
	}

	var decision models.Decision
	switch strings.ToLower(args[1]) {
	case "approve", "approved":
		decision = models.RequestStatusApproved
	case "reject", "rejected":
		decision = models.RequestStatusRejected
	default:
		return usagef("decision must be approve or reject")
	}
	return c.client.Decide(ctx, id, decision)
}

func (c *command) staffAdjust(ctx context.Context, args []string) error {
	var (
		id       int64
		name     string
		amount   string
		op       string
		currency string
	)
	flags := pflag.NewFlagSet("staff adjust", pflag.ContinueOnError)
	flags.Int64Var(&id, "id", 0, "target account id")
	flags.StringVar(&name, "name", "", "target account full name")
	flags.StringVar(&amount, "amount", "", "amount to add or subtract")
	flags.StringVar(&op, "op", string(models.OperationAdd), "add or subtract")
	flags.StringVar(&currency, "currency", string(models.CurrencyRUB), "RUB or USD")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}

	var target staff.Target
	switch {
	case id != 0 && name != "":
		return usagef("use either --id or --name")
	case id != 0:
		target = staff.ByID(id)
	case name != "":
		target = staff.ByName(name)
	default:
		return usagef("--id or --name is required")
	}

	value, err := parseAmount("amount", []string{amount})
	if err != nil {
		return err
	}
	cur, err := models.ParseCurrency(strings.ToUpper(currency))
	if err != nil {
		return usagef("%v", err)
	}
	return c.client.AdjustBalance(ctx, target, value, models.BalanceOperation(op), cur)
}
