// Package main provides the Morpho lending CLI: market and vault lookups,
// position and risk reports, vault deposit/withdraw planning and execution,
// and a read-only HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/archon-research/stl/stl-morpho/internal/pkg/env"
)

// Build-time variables - can be set via ldflags, otherwise populated from Go's build info.
var (
	GitCommit string
	BuildTime string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if GitCommit == "" {
					GitCommit = setting.Value
				}
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	}
}

const usage = `usage: morpho-cli -mode <mode> [flags]

modes:
  resolve-market  -market <id | COLLATERAL/LOAN>
  resolve-vault   -vault <address | name>
  market          -market <ref>
  position        -user <address> -market <ref>
  positions       -user <address>
  vaults          [-vault <ref>]
  plan-deposit    -vault <ref> -amount <n> -owner <address> [-receiver <address>] [-approval exact|max]
  plan-withdraw   -vault <ref> -amount <n> -owner <address> [-receiver <address>]
  execute         -op deposit|withdraw -vault <ref> -amount <n> (signer from PRIVATE_KEY)
  serve           [-addr :8080]
`

func main() {
	var f flags
	flag.StringVar(&f.mode, "mode", "", "Command to run (see usage)")
	flag.StringVar(&f.chain, "chain", "", "Chain name or id (env CHAIN_ID, default mainnet)")
	flag.StringVar(&f.rpcURL, "rpc", "", "JSON-RPC endpoint (env RPC_URL, default: the chain's public endpoint)")
	flag.StringVar(&f.market, "market", "", "Market id or COLLATERAL/LOAN pair")
	flag.StringVar(&f.vault, "vault", "", "Vault address or name")
	flag.StringVar(&f.user, "user", "", "User address")
	flag.StringVar(&f.owner, "owner", "", "Owner address for plans")
	flag.StringVar(&f.receiver, "receiver", "", "Receiver address, defaults to the owner")
	flag.StringVar(&f.amount, "amount", "", "Amount in asset units, e.g. 1.5")
	flag.StringVar(&f.approval, "approval", "exact", "Approval size for deposits: exact or max")
	flag.StringVar(&f.op, "op", "", "Operation for execute: deposit or withdraw")
	flag.StringVar(&f.addr, "addr", "", "Listen address for serve (env HTTP_ADDR, default :8080)")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("morpho-cli\n")
		fmt.Printf("  Commit:     %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	if f.mode == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, f); err != nil {
		logger.Error("failed", "mode", f.mode, "error", err)
		os.Exit(1)
	}
}

type flags struct {
	mode     string
	chain    string
	rpcURL   string
	market   string
	vault    string
	user     string
	owner    string
	receiver string
	amount   string
	approval string
	op       string
	addr     string
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	a, err := newApp(ctx, logger, f)
	if err != nil {
		return err
	}
	defer a.Close()

	out := os.Stdout
	switch f.mode {
	case "resolve-market":
		return cmdResolveMarket(ctx, out, a, f)
	case "resolve-vault":
		return cmdResolveVault(ctx, out, a, f)
	case "market":
		return cmdMarket(ctx, out, a, f)
	case "position":
		return cmdPosition(ctx, out, a, f)
	case "positions":
		return cmdPositions(ctx, out, a, f)
	case "vaults":
		return cmdVaults(ctx, out, a, f)
	case "plan-deposit":
		return cmdPlanDeposit(ctx, out, a, f)
	case "plan-withdraw":
		return cmdPlanWithdraw(ctx, out, a, f)
	case "execute":
		return cmdExecute(ctx, out, a, f)
	case "serve":
		return cmdServe(ctx, a, f)
	default:
		return fmt.Errorf("unknown mode: %s", f.mode)
	}
}
