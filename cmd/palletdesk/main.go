package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"palletdesk/internal"
	"palletdesk/internal/config"
	"palletdesk/internal/labels"
	"palletdesk/internal/registry"
	"palletdesk/internal/storage"
	"palletdesk/internal/tabular"
)

// session wires the registries over the persisted snapshot: orders expose a
// read-only weight lookup to pallets, pallets receive weight-change
// notifications from orders.
type session struct {
	cfg     config.Config
	db      *storage.DB
	orders  *registry.Orders
	pallets *registry.Pallets
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	snap, err := db.LoadSnapshot()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	orders := registry.NewOrders()
	pallets := registry.NewPallets(cfg.PalletMaxKg, orders.WeightOf)
	orders.SetWeightListener(func(id string, kg float64) {
		pallets.OnOrderWeightChanged(id, kg)
	})

	orders.ReplaceAll(snap.Orders)
	pallets.ReplaceAll(snap.Rows)
	pallets.RestoreMeta(snap.Meta)

	return &session{cfg: cfg, db: db, orders: orders, pallets: pallets}, nil
}

func (s *session) save() error {
	return s.db.SaveSnapshot(internal.Snapshot{
		Orders: s.orders.All(),
		Rows:   s.pallets.Rows(),
		Meta:   s.pallets.MetaSnapshot(),
	})
}

func (s *session) close() {
	_ = s.db.Close()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	s, err := openSession()
	must(err)
	defer s.close()

	cmd := os.Args[1]
	switch cmd {
	case "import:table":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "csv/xlsx/html file with pallet line-items")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		rows, rowErrs, err := importTable(*input)
		must(err)
		s.pallets.ReplaceAll(rows)
		must(s.save())
		fmt.Printf("imported %d rows from %s\n", len(rows), *input)
		printRowErrors(rowErrs)
	case "orders:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "orders csv file")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		text, err := os.ReadFile(*input)
		must(err)
		orders, rowErrs, err := tabular.OrdersFromCSV(string(text))
		must(err)
		s.orders.ReplaceAll(orders)
		must(s.save())
		fmt.Printf("imported %d orders from %s\n", len(orders), *input)
		printRowErrors(rowErrs)
	case "orders:upsert":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "order id")
		customer := fs.String("customer", "", "customer name")
		status := fs.String("status", "", "Pending|Packed|Shipped|Cancelled")
		weight := fs.Float64("weight", 0, "weight in kg")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		u := registry.OrderUpdate{OrderID: *id}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "customer":
				u.Customer = customer
			case "status":
				st := internal.OrderStatus(*status)
				u.Status = &st
			case "weight":
				u.WeightKg = weight
			}
		})
		s.orders.Upsert(u)
		must(s.save())
		fmt.Printf("upserted order %s\n", *id)
	case "orders:ship":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		ids := fs.String("ids", "", "comma-separated order ids")
		deliveredOn := fs.String("deliveredOn", "", "delivery date (ISO)")
		_ = fs.Parse(os.Args[2:])
		n := s.orders.MarkAsShipped(splitIDs(*ids), *deliveredOn)
		must(s.save())
		fmt.Printf("marked %d orders shipped\n", n)
	case "orders:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		ids := fs.String("ids", "", "comma-separated order ids")
		hard := fs.Bool("hard", false, "delete permanently")
		_ = fs.Parse(os.Args[2:])
		var n int
		if *hard {
			n = s.orders.HardDeleteByIDs(splitIDs(*ids))
		} else {
			n = s.orders.SoftDeleteMany(splitIDs(*ids))
		}
		must(s.save())
		fmt.Printf("deleted %d orders (hard=%v)\n", n, *hard)
	case "orders:undo":
		n := s.orders.UndoDelete()
		must(s.save())
		fmt.Printf("restored %d orders\n", n)
	case "pallet:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "pallet id")
		orderIDs := fs.String("orders", "", "comma-separated order ids")
		_ = fs.Parse(os.Args[2:])
		n := s.pallets.AddOrders(*id, splitIDs(*orderIDs))
		must(s.save())
		fmt.Printf("assigned %d lines to pallet %s\n", n, *id)
	case "pallet:remove":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "pallet id")
		orderIDs := fs.String("orders", "", "comma-separated order ids")
		_ = fs.Parse(os.Args[2:])
		n := s.pallets.RemoveOrders(*id, splitIDs(*orderIDs))
		must(s.save())
		fmt.Printf("removed %d lines from pallet %s\n", n, *id)
	case "pallet:pack":
		id := singleID(cmd)
		ok := s.pallets.Pack(id)
		must(s.save())
		fmt.Printf("pack %s: %v\n", id, ok)
	case "pallet:ship":
		id := singleID(cmd)
		ok := s.pallets.MarkShipped(id)
		must(s.save())
		fmt.Printf("ship %s: %v\n", id, ok)
	case "pallet:reopen":
		id := singleID(cmd)
		s.pallets.Reopen(id)
		must(s.save())
		fmt.Printf("reopened %s\n", id)
	case "pallet:split":
		id := singleID(cmd)
		n := s.pallets.SplitOverMax(id)
		must(s.save())
		fmt.Printf("split %s: moved %d lines\n", id, n)
	case "pallet:set":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "pallet id")
		transporter := fs.String("transporter", "", "transporter name (empty clears)")
		max := fs.Float64("max", 0, "max weight kg (0 clears the override)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "transporter":
				if !s.pallets.SetTransporter(*id, *transporter) {
					fmt.Printf("pallet %s is shipped, transporter unchanged\n", *id)
				}
			case "max":
				if !s.pallets.SetMaxWeight(*id, *max) {
					fmt.Printf("pallet %s is shipped, max weight unchanged\n", *id)
				}
			}
		})
		must(s.save())
	case "pallet:summary":
		for _, sum := range s.pallets.Summaries() {
			warn := ""
			if sum.Warn {
				warn = " OVERWEIGHT"
			}
			fmt.Printf("%s\t%s\tlines=%d\tweight=%.2f/%.0f%s\n", sum.PalletID, sum.Status, sum.Lines, sum.WeightKg, sum.MaxWeightKg, warn)
		}
		containers := s.pallets.ContainerWeights()
		ids := make([]string, 0, len(containers))
		for c := range containers {
			ids = append(ids, c)
		}
		sort.Strings(ids)
		for _, c := range ids {
			if w := containers[c]; w > s.cfg.ContainerMaxKg {
				fmt.Printf("container %s OVERWEIGHT: %.2f/%.0f\n", c, w, s.cfg.ContainerMaxKg)
			}
		}
		printRowErrors(s.pallets.QualityErrors())
	case "labels:pdf":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output pdf path")
		_ = fs.Parse(os.Args[2:])
		path := outputPath(s.cfg, *out, "pallet-labels.pdf")
		must(labels.Render(s.pallets.Summaries(), path))
		fmt.Printf("labels written to %s\n", path)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := outputPath(s.cfg, *out, "pallet-summary.xlsx")
		must(tabular.ExportSummariesXLSX(s.pallets.Summaries(), path))
		fmt.Printf("summary written to %s\n", path)
	case "export:rows":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := outputPath(s.cfg, *out, "line-items.xlsx")
		must(tabular.ExportLineItemsXLSX(s.pallets.Rows(), path))
		fmt.Printf("line-items written to %s\n", path)
	case "export:orders":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output csv or xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := outputPath(s.cfg, *out, "orders.csv")
		if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
			must(tabular.ExportOrdersXLSX(s.orders.All(), path))
		} else {
			must(os.WriteFile(path, []byte(tabular.OrdersToCSV(s.orders.All())), 0o644))
		}
		fmt.Printf("orders written to %s\n", path)
	default:
		usage()
		os.Exit(1)
	}
}

func importTable(path string) ([]internal.LineItem, []internal.RowError, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return tabular.ImportXLSX(content)
	case ".htm", ".html":
		return tabular.ImportHTML(content)
	default:
		return tabular.ImportCSV(string(content))
	}
}

func singleID(cmd string) string {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	id := fs.String("id", "", "pallet id")
	_ = fs.Parse(os.Args[2:])
	if strings.TrimSpace(*id) == "" {
		must(fmt.Errorf("--id is required"))
	}
	return *id
}

func splitIDs(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func outputPath(cfg config.Config, out, fallback string) string {
	if strings.TrimSpace(out) != "" {
		return out
	}
	_ = os.MkdirAll(cfg.OutputDir, 0o755)
	return filepath.Join(cfg.OutputDir, fallback)
}

func printRowErrors(rowErrs []internal.RowError) {
	for _, e := range rowErrs {
		fmt.Printf("  row %d: %s\n", e.Index+1, e.Reason)
	}
}

func usage() {
	fmt.Println(`usage: palletdesk <command> [flags]

commands:
  import:table    --input <file.csv|.xlsx|.html>
  orders:import   --input <orders.csv>
  orders:upsert   --id <orderId> [--customer ...] [--status ...] [--weight ...]
  orders:ship     --ids a,b,c [--deliveredOn 2026-01-30]
  orders:delete   --ids a,b,c [--hard]
  orders:undo
  pallet:add      --id <palletId> --orders a,b,c
  pallet:remove   --id <palletId> --orders a,b,c
  pallet:pack     --id <palletId>
  pallet:ship     --id <palletId>
  pallet:reopen   --id <palletId>
  pallet:split    --id <palletId>
  pallet:set      --id <palletId> [--transporter ...] [--max <kg>]
  pallet:summary
  labels:pdf      [--out labels.pdf]
  export:xlsx     [--out summary.xlsx]
  export:rows     [--out line-items.xlsx]
  export:orders   [--out orders.csv|orders.xlsx]`)
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
