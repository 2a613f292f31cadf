// Package main is the entry point of routermonitor: it keeps track of the
// DHCP clients known to the router and reports new devices on the network.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cjnaz/routermonitor/pkg/clientsdb"
	"github.com/cjnaz/routermonitor/pkg/config"
	"github.com/cjnaz/routermonitor/pkg/leasefetch"
	"github.com/cjnaz/routermonitor/pkg/logger"
	"github.com/cjnaz/routermonitor/pkg/macoui"
	"github.com/cjnaz/routermonitor/pkg/monitor"
	"github.com/cjnaz/routermonitor/pkg/notify"
	"github.com/cjnaz/routermonitor/pkg/revdns"
	"github.com/cjnaz/routermonitor/pkg/webui"
)

var version = "dev" // set at build time through -ldflags

type cliFlags struct {
	configPath string
	sortBy     string

	update     bool
	listDHCP   bool
	createDB   bool
	service    bool
	note       string
	deleteFlag bool
	mac        string

	showVersion bool

	// positional argument: filter listings to rows containing this text
	searchTerm string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "routermonitor.yaml", "path of the configuration file")
	flag.StringVar(&f.sortBy, "sort-by", "", "sort listings by: "+strings.Join(config.SortModes, ", "))
	flag.BoolVar(&f.update, "update", false, "fetch the DHCP leases and update the clients database")
	flag.BoolVar(&f.listDHCP, "list-dhcp-server", false, "list the current leases on the DHCP server (default: list the clients database)")
	flag.BoolVar(&f.createDB, "create-db", false, "create a fresh clients database from the current DHCP leases")
	flag.BoolVar(&f.service, "service", false, "run forever, updating at the configured interval")
	flag.StringVar(&f.note, "note", "", "attach a note to the client selected with --mac")
	flag.BoolVar(&f.deleteFlag, "delete", false, "delete the client selected with --mac")
	flag.StringVar(&f.mac, "mac", "", "MAC address selecting the client for --note / --delete")
	flag.BoolVar(&f.showVersion, "version", false, "print the version and exit")
	flag.Parse()
	f.searchTerm = strings.Join(flag.Args(), " ")
	return f
}

func run(log *logger.CustomLogger) error {
	f := parseFlags()

	if f.showVersion {
		fmt.Println("routermonitor " + version)
		return nil
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if f.sortBy != "" {
		found := false
		for _, mode := range config.SortModes {
			if f.sortBy == mode {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("invalid --sort-by %q: must be one of %v", f.sortBy, config.SortModes)
		}
	}

	db, err := clientsdb.NewClientsDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open clients database %s: %w", cfg.DatabasePath, err)
	}
	defer func() {
		_ = db.Close()
	}()

	fetcher, err := leasefetch.New(cfg, log)
	if err != nil {
		return err
	}

	m := monitor.New(log, fetcher, db, buildMonitorOptions(cfg, log))

	// stop cleanly on SIGINT/SIGTERM (mostly relevant for --service)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case f.note != "" || f.deleteFlag:
		return runManualOp(m, f)

	case f.createDB:
		return m.Bootstrap(ctx)

	case f.update:
		return m.Update(ctx)

	case f.service:
		return runService(ctx, cfg, log, db, m)

	case f.listDHCP:
		return m.ListServerLeases(ctx, os.Stdout, monitor.ListOptions{SortBy: f.sortBy, Search: f.searchTerm})

	default:
		return m.ListKnownClients(os.Stdout, monitor.ListOptions{SortBy: f.sortBy, Search: f.searchTerm})
	}
}

func buildMonitorOptions(cfg *config.Config, log *logger.CustomLogger) monitor.Options {
	opts := monitor.Options{
		Pool:           cfg.DhcpPool,
		UpdateInterval: cfg.UpdateInterval,
		SortBy:         cfg.SortBy,
	}

	if cfg.OUILookup {
		opts.OUI = macoui.NewResolver()
	}

	if cfg.ReverseDNS.Enable {
		opts.RevDNS = revdns.NewResolver(cfg.ReverseDNS.Server, cfg.ReverseDNS.Port)
	}

	var sinks []notify.Notifier
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.SMTP.Server != "" {
		sinks = append(sinks, notify.NewEmailNotifier(cfg.SMTP))
	}
	opts.Notifier = notify.NewMultiNotifier(sinks...)
	if opts.Notifier.Empty() {
		log.Warn("No notification channel configured: new clients will only be logged")
	}
	return opts
}

func runManualOp(m *monitor.Monitor, f cliFlags) error {
	if f.mac == "" {
		return errors.New("--note and --delete require --mac")
	}
	if f.note != "" && f.deleteFlag {
		return errors.New("--note and --delete are mutually exclusive")
	}
	mac, err := net.ParseMAC(f.mac)
	if err != nil {
		return fmt.Errorf("invalid --mac %q: %w", f.mac, err)
	}

	if f.deleteFlag {
		return m.DeleteClient(mac)
	}
	return m.AddNote(mac, f.note)
}

func runService(ctx context.Context, cfg *config.Config, log *logger.CustomLogger, db *clientsdb.ClientsDB, m *monitor.Monitor) error {
	if cfg.WebUIPort > 0 {
		ui := webui.NewServer(log, db, cfg.WebUIPort, cfg.WebUIRefreshInterval)
		m.SetUpdateHook(ui.Broadcast)
		go func() {
			if err := ui.ListenAndServe(ctx); err != nil {
				log.Warnf("web UI server failed: %s", err.Error())
			}
		}()
	}

	m.RunService(ctx)
	return nil
}

func main() {
	log := logger.NewCustomLogger("routermonitor")

	if err := run(log); err != nil {
		log.Fatal(err.Error())
		os.Exit(1)
	}
}
