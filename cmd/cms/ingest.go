package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RedisLabsModules/countminsketch/pkg/command"
	"github.com/RedisLabsModules/countminsketch/pkg/common/apperr"
	"github.com/RedisLabsModules/countminsketch/pkg/mq/batcher"
)

type ingestOptions struct {
	workers   int
	batchSize int
}

func (a *app) ingestCmd() *cobra.Command {
	opts := ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest KEY",
		Short: "Count items read from stdin, one per line as ITEM or ITEM<TAB>DELTA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := ingest(cmd.Context(), a.engine, a.log, args[0], cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}
			a.log.Info("ingest finished", zap.String("key", args[0]), zap.Int64("lines", n))

			reply, err := a.dispatcher.Execute(cmd.Context(), command.CmdDebug, args[0])
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "parser goroutines")
	cmd.Flags().IntVarP(&opts.batchSize, "batch", "b", 512, "increments per store round-trip")
	return cmd
}

// ingest streams lines from r into key through a batcher and returns the
// number of increments pushed. Everything pushed is flushed before it returns.
func ingest(ctx context.Context, e *command.Engine, log *zap.Logger, key string, r io.Reader, opts ingestOptions) (int64, error) {
	if opts.workers < 1 {
		opts.workers = 1
	}

	b := batcher.New[command.KeyedIncrement](
		batcher.ConsumerFunc[command.KeyedIncrement](e.Consumer(ctx)),
		batcher.Config{StripeSize: opts.batchSize},
	)

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string, opts.workers*64)

	g.Go(func() error {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return sc.Err()
	})

	var pushed atomic.Int64
	for i := 0; i < opts.workers; i++ {
		g.Go(func() error {
			for line := range lines {
				inc, ok, err := parseLine(line)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := b.Push(command.KeyedIncrement{Key: key, Increment: inc}); err != nil {
					return err
				}
				pushed.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if ferr := b.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		log.Error("ingest failed", zap.String("key", key), zap.Error(err))
		return pushed.Load(), err
	}
	return pushed.Load(), nil
}

// parseLine reads "ITEM" or "ITEM\tDELTA". Blank lines are skipped.
func parseLine(line string) (command.Increment, bool, error) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return command.Increment{}, false, nil
	}

	item, deltaStr, hasDelta := strings.Cut(line, "\t")
	if !hasDelta {
		return command.Increment{Item: item, Delta: 1}, true, nil
	}
	delta, err := strconv.ParseInt(deltaStr, 10, 64)
	if err != nil {
		return command.Increment{}, false, apperr.Wrap(err, apperr.InvalidParameter,
			fmt.Sprintf("%s in line %q", apperr.MsgNotInteger, line))
	}
	return command.Increment{Item: item, Delta: delta}, true, nil
}
