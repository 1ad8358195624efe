package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	httpadapter "github.com/archon-research/stl/stl-morpho/internal/adapters/inbound/http"
	"github.com/archon-research/stl/stl-morpho/internal/domain/entity"
	"github.com/archon-research/stl/stl-morpho/internal/pkg/env"
)

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("-%s is required", name)
	}
	return nil
}

func parseAddress(name, value string) (common.Address, error) {
	if err := requireFlag(name, value); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("-%s: %q is not a hex address", name, value)
	}
	return common.HexToAddress(value), nil
}

func optionalAddress(name, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return parseAddress(name, value)
}

func cmdResolveMarket(ctx context.Context, w io.Writer, a *app, f flags) error {
	if err := requireFlag("market", f.market); err != nil {
		return err
	}
	id, err := a.service.ResolveMarket(ctx, f.market, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, id)
	return nil
}

func cmdResolveVault(ctx context.Context, w io.Writer, a *app, f flags) error {
	if err := requireFlag("vault", f.vault); err != nil {
		return err
	}
	addr, err := a.service.ResolveVault(ctx, f.vault, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, addr.Hex())
	return nil
}

func cmdMarket(ctx context.Context, w io.Writer, a *app, f flags) error {
	if err := requireFlag("market", f.market); err != nil {
		return err
	}
	id, err := a.service.ResolveMarket(ctx, f.market, 0)
	if err != nil {
		return err
	}
	m, err := a.service.GetMarketSummary(ctx, id, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "market %s (%s/%s) on %s\n", m.ID, m.CollateralAsset.Symbol, m.LoanAsset.Symbol, a.chain.Name)
	fmt.Fprintf(w, "  LLTV:         %s%%\n", m.LLTV)
	fmt.Fprintf(w, "  supply APY:   %s%%\n", m.SupplyAPY.StringFixed(2))
	fmt.Fprintf(w, "  borrow APY:   %s%%\n", m.BorrowAPY.StringFixed(2))
	fmt.Fprintf(w, "  total supply: $%s\n", m.TotalSupplyUSD.StringFixed(2))
	fmt.Fprintf(w, "  total borrow: $%s\n", m.TotalBorrowUSD.StringFixed(2))
	fmt.Fprintf(w, "  liquidity:    $%s\n", m.LiquidityUSD.StringFixed(2))
	return nil
}

func cmdPosition(ctx context.Context, w io.Writer, a *app, f flags) error {
	user, err := parseAddress("user", f.user)
	if err != nil {
		return err
	}
	if err := requireFlag("market", f.market); err != nil {
		return err
	}
	id, err := a.service.ResolveMarket(ctx, f.market, 0)
	if err != nil {
		return err
	}
	pos, err := a.service.GetUserPosition(ctx, user, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, pos.Describe())
	return nil
}

func cmdPositions(ctx context.Context, w io.Writer, a *app, f flags) error {
	user, err := parseAddress("user", f.user)
	if err != nil {
		return err
	}
	positions, err := a.service.GetUserPositions(ctx, user, 0)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Fprintf(w, "%s has no open positions on %s\n", user.Hex(), a.chain.Name)
		return nil
	}
	for i := range positions {
		fmt.Fprintln(w, positions[i].Describe())
	}
	return nil
}

func cmdVaults(ctx context.Context, w io.Writer, a *app, f flags) error {
	vaults, err := a.service.GetVaultData(ctx, f.vault, 0)
	if err != nil {
		return err
	}
	for _, v := range vaults {
		tvl := "n/a"
		if v.TotalAssetsUSD != nil {
			tvl = "$" + v.TotalAssetsUSD.StringFixed(0)
		}
		fmt.Fprintf(w, "%s  %-32s %-8s APY %6s%%  TVL %s  markets %d\n",
			v.Address.Hex(), v.Name, v.Asset.Symbol, v.APY.Yearly.StringFixed(2), tvl, len(v.Allocations))
	}
	return nil
}

func depositRequest(f flags, owner common.Address) (entity.DepositRequest, error) {
	if err := requireFlag("vault", f.vault); err != nil {
		return entity.DepositRequest{}, err
	}
	receiver, err := optionalAddress("receiver", f.receiver)
	if err != nil {
		return entity.DepositRequest{}, err
	}
	policy, err := entity.ParseApprovalPolicy(f.approval)
	if err != nil {
		return entity.DepositRequest{}, err
	}
	return entity.DepositRequest{
		VaultReference: f.vault,
		Amount:         f.amount,
		Owner:          owner,
		Receiver:       receiver,
		ApprovalPolicy: policy,
	}, nil
}

func withdrawRequest(f flags, owner common.Address) (entity.WithdrawRequest, error) {
	if err := requireFlag("vault", f.vault); err != nil {
		return entity.WithdrawRequest{}, err
	}
	receiver, err := optionalAddress("receiver", f.receiver)
	if err != nil {
		return entity.WithdrawRequest{}, err
	}
	return entity.WithdrawRequest{
		VaultReference: f.vault,
		Amount:         f.amount,
		Owner:          owner,
		Receiver:       receiver,
	}, nil
}

func cmdPlanDeposit(ctx context.Context, w io.Writer, a *app, f flags) error {
	owner, err := parseAddress("owner", f.owner)
	if err != nil {
		return err
	}
	req, err := depositRequest(f, owner)
	if err != nil {
		return err
	}
	plan, err := a.service.BuildDepositPlan(ctx, req)
	if err != nil {
		return err
	}
	printPlan(w, plan)
	return nil
}

func cmdPlanWithdraw(ctx context.Context, w io.Writer, a *app, f flags) error {
	owner, err := parseAddress("owner", f.owner)
	if err != nil {
		return err
	}
	req, err := withdrawRequest(f, owner)
	if err != nil {
		return err
	}
	plan, err := a.service.BuildWithdrawPlan(ctx, req)
	if err != nil {
		return err
	}
	printPlan(w, plan)
	return nil
}

// loadSigner reads PRIVATE_KEY from the environment. The key stays in this
// function's scope and the transactor closure; it is never logged or stored.
func loadSigner(chainID int64) (*bind.TransactOpts, error) {
	raw := env.Get("PRIVATE_KEY", "")
	if raw == "" {
		return nil, errors.New("PRIVATE_KEY environment variable is required for execute")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, errors.New("PRIVATE_KEY is not a valid hex private key")
	}
	return bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
}

func cmdExecute(ctx context.Context, w io.Writer, a *app, f flags) error {
	signer, err := loadSigner(a.chain.ChainID)
	if err != nil {
		return err
	}
	signer.Context = ctx

	var plan *entity.VaultTransactionPlan
	switch f.op {
	case "deposit":
		req, err := depositRequest(f, signer.From)
		if err != nil {
			return err
		}
		plan, err = a.service.BuildDepositPlan(ctx, req)
		if err != nil {
			return err
		}
	case "withdraw":
		req, err := withdrawRequest(f, signer.From)
		if err != nil {
			return err
		}
		plan, err = a.service.BuildWithdrawPlan(ctx, req)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("-op must be deposit or withdraw, got %q", f.op)
	}

	printPlan(w, plan)
	result, err := a.service.ExecutePlan(ctx, plan, signer)
	if err != nil {
		return err
	}
	for i, hash := range result.Hashes {
		fmt.Fprintf(w, "step %d %s: %s (block %s)\n", i, plan.Calls[i].Function, hash.Hex(), result.Receipts[i].BlockNumber)
	}
	return nil
}

func printPlan(w io.Writer, plan *entity.VaultTransactionPlan) {
	fmt.Fprintf(w, "%s plan on chain %d: vault %s, asset %s, owner %s, amount %s\n",
		plan.Kind, plan.ChainID, plan.Vault.Hex(), plan.Asset.Symbol, plan.Owner.Hex(), plan.Amount)
	if plan.ExpectedShares != nil {
		fmt.Fprintf(w, "  expected shares: %s\n", plan.ExpectedShares)
	}
	for i, call := range plan.Calls {
		fmt.Fprintf(w, "  %d. %s -> %s\n", i+1, call.Function, call.Target.Hex())
		fmt.Fprintf(w, "     data: %s\n", hexutil.Encode(call.Data))
		if call.Decoded != nil {
			fmt.Fprintf(w, "     simulated: %v\n", call.Decoded)
		}
	}
}

func cmdServe(ctx context.Context, a *app, f flags) error {
	addr := env.ResolveOr(":8080", env.Value(f.addr), env.Var("HTTP_ADDR"))

	var shuttingDown atomic.Bool
	cfg := httpadapter.ServerConfigDefaults()
	cfg.Addr = addr
	cfg.Logger = a.logger
	if a.prom != nil {
		cfg.Metrics = a.prom.Handler
	}
	api := httpadapter.NewHandler(a.service, a.metrics, a.logger)
	server := httpadapter.NewServer(cfg, api, a.service, &shuttingDown)

	go a.service.Monitor(ctx, 30*time.Second)
	server.Start()

	<-ctx.Done()
	a.logger.Info("shutting down")
	shuttingDown.Store(true)
	return server.Shutdown(15 * time.Second)
}
