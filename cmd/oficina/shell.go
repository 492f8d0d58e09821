package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/app"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell over customers, vehicles, orders and stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, c, err := bootstrap(ctx, true)
		if err != nil {
			return err
		}
		defer c.Close()
		return runShell(ctx, c)
	},
}

type shellFunc func(ctx context.Context, c *app.Container, w io.Writer, args []string) error

type shellCommand struct {
	usage string
	run   shellFunc
}

var shellCommands = map[string]shellCommand{
	"customers": {"customers [name]", listCustomers},
	"customer":  {"customer <document>", showCustomer},
	"history":   {"history <plate>", showHistory},
	"orders":    {"orders [status...]", listOrders},
	"order":     {"order <id>", showOrder},
	"advance":   {"advance <id> <status>", advanceOrder},
	"parts":     {"parts", stockReport},
	"low-stock": {"low-stock", lowStock},
	"restock":   {"restock <sku> <qty>", restock},
	"jobs":      {"jobs", listJobs},
	"run-job":   {"run-job <name>", runJob},
}

func runShell(ctx context.Context, c *app.Container) error {
	names := make([]string, 0, len(shellCommands))
	items := make([]readline.PrefixCompleterInterface, 0, len(shellCommands)+2)
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"))

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".oficina_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "oficina> ",
		HistoryFile:     history,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	out := rl.Stdout()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			for _, name := range names {
				fmt.Fprintln(out, "  "+shellCommands[name].usage)
			}
			continue
		}
		sc, ok := shellCommands[fields[0]]
		if !ok {
			fmt.Fprintf(out, "unknown command %q, try help\n", fields[0])
			continue
		}
		if err := sc.run(ctx, c, out, fields[1:]); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	tw.Flush()
}

func listCustomers(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) > 0 {
		found, err := c.CustomerService.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		table(w, "ID\tNAME\tDOCUMENT\tPHONE", func(tw *tabwriter.Writer) {
			for _, cu := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cu.ID, cu.Name, cu.Document, cu.Phone)
			}
		})
		return nil
	}
	rows, err := c.CustomerService.List(ctx)
	if err != nil {
		return err
	}
	table(w, "ID\tNAME\tDOCUMENT\tVEHICLES", func(tw *tabwriter.Writer) {
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.Name, r.Document, r.VehicleCount)
		}
	})
	return nil
}

func showCustomer(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: customer <document>")
	}
	found, err := c.CustomerService.FindByDocument(ctx, args[0])
	if err != nil {
		return err
	}
	if found == nil {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, args[0])
	}
	cu, err := c.CustomerService.Get(ctx, found.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %s  %s  %s\n", cu.Name, cu.Document, cu.Email, cu.Phone)
	for _, v := range cu.Vehicles {
		fmt.Fprintf(w, "  %s %s %s (%d), %d order(s)\n", v.Plate, v.Brand, v.Model, v.Year, len(v.ServiceOrders))
	}
	return nil
}

func showHistory(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: history <plate>")
	}
	v, err := c.VehicleService.FindByPlate(ctx, args[0])
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: plate %s", domain.ErrNotFound, args[0])
	}
	orders, err := c.VehicleService.History(ctx, v.ID)
	if err != nil {
		return err
	}
	printOrders(w, orders)
	return nil
}

func listOrders(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	var (
		orders []*workshop.ServiceOrder
		err    error
	)
	if len(args) == 0 {
		orders, err = c.OrderService.ListOpen(ctx)
	} else {
		statuses := make([]workshop.OrderStatus, len(args))
		for i, a := range args {
			statuses[i] = workshop.OrderStatus(a)
		}
		orders, err = c.OrderService.ListByStatus(ctx, statuses...)
	}
	if err != nil {
		return err
	}
	printOrders(w, orders)
	return nil
}

func printOrders(w io.Writer, orders []*workshop.ServiceOrder) {
	table(w, "ID\tSTATUS\tOPENED\tTOTAL\tDESCRIPTION", func(tw *tabwriter.Writer) {
		for _, o := range orders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Status, o.OpenedAt.Format("2006-01-02 15:04"), o.Total, o.Description)
		}
	})
}

func showOrder(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: order <id>")
	}
	id, err := domain.ParseID(args[0])
	if err != nil {
		return err
	}
	o, err := c.OrderService.Details(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %s  %s\n", o.ID, o.Status, o.Description)
	if o.Customer != nil {
		fmt.Fprintf(w, "customer: %s (%s)\n", o.Customer.Name, o.Customer.Phone)
	}
	if o.Vehicle != nil {
		fmt.Fprintf(w, "vehicle:  %s %s %s\n", o.Vehicle.Plate, o.Vehicle.Brand, o.Vehicle.Model)
	}
	if o.Diagnosis != "" {
		fmt.Fprintf(w, "diagnosis: %s\n", o.Diagnosis)
	}
	table(w, "SKU\tPART\tQTY\tUNIT\tSUBTOTAL", func(tw *tabwriter.Writer) {
		for _, it := range o.Items {
			name := it.PartID.String()
			sku := ""
			if it.Part != nil {
				name, sku = it.Part.Name, it.Part.SKU
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", sku, name, it.Quantity, it.UnitPrice, it.Subtotal())
		}
	})
	fmt.Fprintf(w, "labor %s, total %s\n", o.LaborCost, o.Total)
	return nil
}

func advanceOrder(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: advance <id> <status>")
	}
	id, err := domain.ParseID(args[0])
	if err != nil {
		return err
	}
	if err := c.OrderService.Advance(ctx, id, workshop.OrderStatus(args[1])); err != nil {
		return err
	}
	fmt.Fprintf(w, "order %s is now %s\n", id, args[1])
	return nil
}

func stockReport(ctx context.Context, c *app.Container, w io.Writer, _ []string) error {
	rows, err := c.InventoryService.StockReport(ctx)
	if err != nil {
		return err
	}
	table(w, "SKU\tNAME\tSTOCK\tRESERVED\tMIN\tPRICE", func(tw *tabwriter.Writer) {
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.SKU, r.Name, r.Stock, r.Reserved, r.MinStock, r.UnitPrice)
		}
	})
	return nil
}

func lowStock(ctx context.Context, c *app.Container, w io.Writer, _ []string) error {
	parts, err := c.InventoryService.LowStock(ctx)
	if err != nil {
		return err
	}
	table(w, "SKU\tNAME\tSTOCK\tMIN", func(tw *tabwriter.Writer) {
		for _, p := range parts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", p.SKU, p.Name, p.Stock, p.MinStock)
		}
	})
	return nil
}

func restock(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: restock <sku> <qty>")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	p, err := c.InventoryService.Restock(ctx, args[0], qty)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s now has %d in stock\n", p.SKU, p.Stock)
	return nil
}

func listJobs(_ context.Context, c *app.Container, w io.Writer, _ []string) error {
	table(w, "JOB\tSCHEDULE\tLAST RUN\tATTEMPTS\tERROR", func(tw *tabwriter.Writer) {
		for _, st := range c.Scheduler.Status() {
			last := "-"
			if !st.LastRun.IsZero() {
				last = st.LastRun.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", st.Job, st.Schedule, last, st.Attempts, st.LastErr)
		}
	})
	return nil
}

func runJob(ctx context.Context, c *app.Container, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: run-job <name>")
	}
	if err := c.Scheduler.RunNow(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s done\n", args[0])
	return nil
}
