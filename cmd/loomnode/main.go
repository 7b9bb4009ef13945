// Command loomnode runs a single-process loom devnode: in-memory
// store, standard predicate library, interval block producer and the
// gRPC client surface.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/intentloom/loom/engine"
	loomgrpc "github.com/intentloom/loom/grpc"
	"github.com/intentloom/loom/sandbox"
	"github.com/intentloom/loom/state"
	"github.com/intentloom/loom/stdpred"
	"github.com/intentloom/loom/types"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listen        string
		chainID       string
		blockInterval time.Duration
		workers       int
		mempoolCap    int
		cacheSize     int
		moduleSize    string
		debug         bool
	)

	cmd := &cobra.Command{
		Use:   "loomnode",
		Short: "Run a loom devnode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), options{
				listen:        listen,
				chainID:       chainID,
				blockInterval: blockInterval,
				workers:       workers,
				mempoolCap:    mempoolCap,
				cacheSize:     cacheSize,
				moduleSize:    moduleSize,
				debug:         debug,
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":9000", "gRPC listen address")
	cmd.Flags().StringVar(&chainID, "chain-id", "loom-dev", "chain identifier")
	cmd.Flags().DurationVar(&blockInterval, "block-interval", engine.DefaultBlockInterval, "block production period")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel evaluations per batch (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&mempoolCap, "mempool-cap", engine.DefaultMempoolCap, "mempool capacity")
	cmd.Flags().IntVar(&cacheSize, "module-cache", sandbox.DefaultCacheSize, "compiled module cache entries")
	cmd.Flags().StringVar(&moduleSize, "max-module-size", "2mb", "per-module bytecode size budget")
	cmd.Flags().BoolVar(&debug, "debug", false, "debug logging")
	return cmd
}

type options struct {
	listen        string
	chainID       string
	blockInterval time.Duration
	workers       int
	mempoolCap    int
	cacheSize     int
	moduleSize    string
	debug         bool
}

func run(ctx context.Context, opts options) error {
	var log *zap.Logger
	var err error
	if opts.debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	limits := types.DefaultLimits()
	var budget datasize.ByteSize
	if err := budget.UnmarshalText([]byte(opts.moduleSize)); err != nil {
		return fmt.Errorf("parse --max-module-size: %w", err)
	}
	limits.MaxModuleBytes = budget.Bytes()

	lib := stdpred.New(types.Address{}.Derive("stdlib"))
	genesis := &types.GenesisDoc{
		ChainID:  opts.chainID,
		Limits:   limits,
		StdLib:   lib.Root,
		Accounts: lib.GenesisAccounts(),
	}

	store := state.FromGenesis(genesis)
	box := sandbox.New(sandbox.Config{
		Limits:    limits,
		CacheSize: opts.cacheSize,
		Logger:    log.Named("sandbox"),
	})
	lib.Register(box.Native())

	eng := engine.New(store, box, engine.Config{
		Limits:  limits,
		Workers: opts.workers,
		Logger:  log.Named("engine"),
	})
	node := engine.NewNode(eng, engine.NodeConfig{
		BlockInterval: opts.blockInterval,
		MempoolCap:    opts.mempoolCap,
		Logger:        log.Named("node"),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	node.Start(ctx)
	defer node.Close()

	lis, err := net.Listen("tcp", opts.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.listen, err)
	}
	log.Info("devnode up",
		zap.String("chain", opts.chainID),
		zap.String("listen", opts.listen),
		zap.Duration("block_interval", opts.blockInterval),
		zap.Stringer("stdlib", lib.Root))

	srv := loomgrpc.NewGRPCServer(node)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		lis.Close()
		return nil
	case err := <-errCh:
		return err
	}
}
