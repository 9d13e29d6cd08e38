package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RedisLabsModules/countminsketch/pkg/command"
	"github.com/RedisLabsModules/countminsketch/pkg/common/apperr"
	"github.com/RedisLabsModules/countminsketch/pkg/database/redis"
	"github.com/RedisLabsModules/countminsketch/pkg/logger"
	"github.com/RedisLabsModules/countminsketch/pkg/settings"
	"github.com/RedisLabsModules/countminsketch/pkg/store"
)

// app holds what every subcommand needs once flags and config are resolved.
type app struct {
	cfgPath string
	driver  string
	addr    string

	log        *zap.Logger
	engine     *command.Engine
	dispatcher *command.Dispatcher
	closeStore func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "cms",
		Short:         "Count-Min sketches stored in Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.driver, "driver", "", "store driver: redis or memory (overrides config)")
	root.PersistentFlags().StringVar(&a.addr, "addr", "", "redis host:port (overrides config)")

	root.AddCommand(
		a.passthrough("initbydim KEY WIDTH DEPTH", "Create a sketch with explicit dimensions", command.CmdInitByDim),
		a.passthrough("initbyerr KEY ERROR PROBABILITY", "Create a sketch sized for an error bound", command.CmdInitByErr),
		a.passthrough("incrby KEY ITEM DELTA [ITEM DELTA ...]", "Add deltas to items, creating the sketch if needed", command.CmdIncrBy),
		a.passthrough("query KEY ITEM [ITEM ...]", "Estimate item frequencies", command.CmdQuery),
		a.passthrough("debug KEY", "Show a sketch's count, dimensions and size", command.CmdDebug),
		a.ingestCmd(),
	)

	// PersistentPostRun is skipped when RunE fails, so teardown is deferred
	// inside every subcommand instead.
	for _, sub := range root.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			defer a.teardown()
			return run(cmd, args)
		}
	}

	return root
}

// errorText renders err the way a client would see it. Internal errors keep
// their cause so operators can act on them.
func errorText(err error) string {
	var ae *apperr.AppError
	if errors.As(err, &ae) && ae.Kind != apperr.Internal {
		return ae.Message
	}
	return err.Error()
}

func (a *app) setup() error {
	cfg, err := settings.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.Store.Driver = a.driver
	}
	if a.addr != "" {
		host, port, err := splitAddr(a.addr)
		if err != nil {
			return err
		}
		cfg.Redis.Host, cfg.Redis.Port = host, port
	}

	if a.log, err = logger.New(cfg.Logger); err != nil {
		return err
	}

	var st store.Store
	switch cfg.Store.Driver {
	case settings.DriverMemory:
		st = store.NewMemory()
		a.closeStore = func() {}
	case settings.DriverRedis:
		rs, err := redis.NewConnection(&cfg.Redis, a.log)
		if err != nil {
			return err
		}
		st = rs
		a.closeStore = rs.Close
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if a.engine, err = command.NewEngine(st, cfg.Sketch, a.log); err != nil {
		a.closeStore()
		return err
	}
	a.dispatcher = command.NewDispatcher(a.engine)
	return nil
}

func (a *app) teardown() {
	if a.closeStore != nil {
		a.closeStore()
		a.closeStore = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// passthrough builds a subcommand that forwards its arguments to the dispatcher.
func (a *app) passthrough(use, short, name string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := a.dispatcher.Execute(cmd.Context(), append([]string{name}, args...)...)
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

// printReply renders a reply in redis-cli style.
func printReply(w io.Writer, reply any) {
	switch r := reply.(type) {
	case nil:
		fmt.Fprintln(w, "(nil)")
	case string:
		fmt.Fprintln(w, r)
	case []int64:
		for i, n := range r {
			fmt.Fprintf(w, "%d) (integer) %d\n", i+1, n)
		}
	case []string:
		for i, s := range r {
			fmt.Fprintf(w, "%d) %q\n", i+1, s)
		}
	default:
		fmt.Fprintf(w, "%v\n", r)
	}
}

func splitAddr(addr string) (string, int, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return addr, 0, nil
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return addr[:i], port, nil
}
