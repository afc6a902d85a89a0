package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/HeliosFLR/helios-ui-sub000/cmd/client/config"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/binmath"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/chains"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/chains/flare"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/distribution"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/route"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/txflow"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/xp"
	pairstate "github.com/HeliosFLR/helios-ui-sub000/protocols/lbpair"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
	"github.com/HeliosFLR/helios-ui-sub000/streams/activebin"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultWatcherBufferSize = 100

	// privateKeyEnv holds the hex key used for sending transactions.
	privateKeyEnv = "HELIOS_PRIVATE_KEY"
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// SafeState is a thread-safe container for the latest pair snapshots.
type SafeState struct {
	mu     sync.RWMutex
	latest map[uint64]pairstate.PoolState
	pairs  *pairstate.IndexablePairSystem
}

func (s *SafeState) Update(st pairstate.PoolState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		s.latest = make(map[uint64]pairstate.PoolState)
	}
	s.latest[st.PoolID] = st
	all := make([]pairstate.PoolState, 0, len(s.latest))
	for _, v := range s.latest {
		all = append(all, v)
	}
	s.pairs = activebin.Index(all)
}

func (s *SafeState) Get() *pairstate.IndexablePairSystem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairs
}

// App holds what the command handlers need.
type App struct {
	client *flare.Client
	state  *SafeState
	reader *bufio.Reader
	logger *slog.Logger
}

func main() {
	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("client.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogHandler := slog.NewJSONHandler(logFile, nil)
	rootLogger := slog.New(rootLogHandler)

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check client.log for details." + Reset)
		os.Exit(1)
	}

	// --- 2. CONFIG & CONTEXT ---
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 3. INITIALIZE CLIENT ---
	if !chains.Supported(cfg.ChainID.Uint64()) {
		rootLogger.Error(fmt.Sprintf("No liquidity-book deployment for %s", chains.Name(cfg.ChainID.Uint64())))
		closeApp()
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		rootLogger.Error("Failed to connect to RPC", "url", cfg.RPCURL, "error", err)
		closeApp()
	}
	defer eth.Close()

	store, closeStore, err := flare.OpenStore(cfg)
	if err != nil {
		rootLogger.Error("Failed to open XP store", "error", err)
		closeApp()
	}
	defer closeStore()

	client, err := flare.New(cfg, eth, store, rootLogger, prometheusRegistry)
	if err != nil {
		rootLogger.Error("Failed to initialize client", "chain_id", cfg.ChainID, "error", err)
		closeApp()
	}

	unsubscribe := client.XP.Subscribe(func(u xp.Update) {
		if u.Result != nil && u.Result.LeveledUp {
			rootLogger.Info("Level up", "address", u.Address.Hex(), "level", u.Profile.Level)
		}
	})
	defer unsubscribe()

	// --- 4. START WATCHER ---
	watcher, err := client.NewWatcher(ctx, DefaultWatcherBufferSize)
	if err != nil {
		rootLogger.Error("Failed to start active-bin watcher", "error", err)
		closeApp()
	}

	// --- 5. START CONSOLE & STATE LOOP ---
	app := &App{
		client: client,
		state:  &SafeState{},
		reader: bufio.NewReader(os.Stdin),
		logger: rootLogger,
	}

	fmt.Println(Green + "Starting Helios client on " + chains.Name(cfg.ChainID.Uint64()) + "..." + Reset)
	fmt.Println("Logs are being written to 'client.log'")
	go app.runConsole(ctx)

	errCh := watcher.Err()
	for {
		select {
		case s, ok := <-watcher.State():
			if !ok {
				return
			}
			app.state.Update(s)

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			rootLogger.Error("Fatal watcher error", "error", err)
			closeApp()

		case <-ctx.Done():
			fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
			return
		}
	}
}

// runConsole handles user input and display.
func (a *App) runConsole(ctx context.Context) {
	time.Sleep(500 * time.Millisecond)

	for {
		if ctx.Err() != nil {
			return
		}

		printMenu()

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := a.reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		a.handleCommand(ctx, strings.TrimSpace(input))

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		a.reader.ReadString('\n')
	}
}

func printMenu() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "HELIOS LIQUIDITY CLIENT" + Reset + Gray + " | v0.1.0" + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Pool Summary\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Find Routes   %s(token in/out)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s3.%s Quote Swap\n", Cyan, Reset)
	fmt.Printf(" %s4.%s Preview Distribution\n", Cyan, Reset)
	fmt.Printf(" %s5.%s Watch Pool    %s(Live Monitor)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s11.%s Token Prices %s(USD, 24h)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s12.%s Target Bin   %s(price move or price)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s6.%s XP Profile\n", Blue, Reset)
	fmt.Printf(" %s7.%s Record Action %s(manual XP entry)%s\n", Blue, Reset, Gray, Reset)
	fmt.Printf(" %s8.%s Export XP\n", Blue, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s9.%s Send Swap     %s(needs %s)%s\n", Yellow, Reset, Gray, privateKeyEnv, Reset)
	fmt.Printf(" %s10.%s Rebalance    %s(needs %s)%s\n", Yellow, Reset, Gray, privateKeyEnv, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (a *App) handleCommand(ctx context.Context, input string) {
	switch input {
	case "1":
		a.printPoolSummary()
	case "2":
		a.findRoutes()
	case "3":
		a.quoteSwap(ctx)
	case "4":
		a.previewDistribution()
	case "5":
		a.watchPool()
	case "6":
		a.printProfile(ctx)
	case "7":
		a.recordAction(ctx)
	case "8":
		a.exportXP(ctx)
	case "9":
		a.sendSwap(ctx)
	case "10":
		a.rebalance(ctx)
	case "11":
		a.printPrices(ctx)
	case "12":
		a.targetBin(ctx)
	case "q":
		exitConsole()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func (a *App) printPoolSummary() {
	header("POOL SUMMARY")
	pairs := a.state.Get()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "ID\tPAIR\tBIN STEP\tACTIVE ID\tPRICE\tRESERVE X\tRESERVE Y\t")
	fmt.Fprintln(w, "--\t----\t--------\t---------\t-----\t---------\t---------\t")

	for _, p := range a.client.Pools.All() {
		x, _ := a.client.Tokens.GetByAddress(p.TokenX)
		y, _ := a.client.Tokens.GetByAddress(p.TokenY)
		active, price, resX, resY := "-", "-", "-", "-"
		if pairs != nil {
			if s, ok := pairs.GetByID(p.ID); ok {
				active = strconv.FormatUint(uint64(s.ActiveID), 10)
				price = binmath.PriceDecimal(s.ActiveID, p.BinStep, x.Decimals, y.Decimals, 6).String()
				resX = flare.FromRaw(s.ReserveX, x.Decimals).StringFixed(4)
				resY = flare.FromRaw(s.ReserveY, y.Decimals).StringFixed(4)
			}
		}
		fmt.Fprintf(w, "%d\t%s/%s\t%d\t%s\t%s\t%s\t%s\t\n", p.ID, x.Symbol, y.Symbol, p.BinStep, active, price, resX, resY)
	}
	w.Flush()

	if pairs == nil {
		fmt.Println("\n" + Yellow + "[INFO] Waiting for first pool snapshot... (Check connection/logs)" + Reset)
	}
}

func (a *App) findRoutes() {
	in := a.prompt("[Routes] Token in (symbol or address): ")
	out := a.prompt("[Routes] Token out (symbol or address): ")
	tokenIn, ok1 := a.client.Tokens.Resolve(in)
	tokenOut, ok2 := a.client.Tokens.Resolve(out)
	if !ok1 || !ok2 {
		fmt.Println(Red + "[NOT FOUND] Token not in registry." + Reset)
		return
	}

	neighbors := a.client.Pools.Neighbors(tokenIn.Address)
	labels := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		labels = append(labels, a.symbol(n))
	}
	printField(tokenIn.Symbol+" pairs with", strings.Join(labels, ", "))
	printField(tokenIn.Symbol+" pools", len(a.client.Pools.PoolsForToken(tokenIn.Address)))

	routes := route.FindRoutes(tokenIn.Address, tokenOut.Address, a.client.Pools, a.client.Tokens.All())
	if len(routes) == 0 {
		fmt.Println(Yellow + "[INFO] No route between these tokens." + Reset)
		return
	}
	best, _ := route.SelectBestRoute(routes)

	header(fmt.Sprintf("ROUTES %s -> %s", tokenIn.Symbol, tokenOut.Symbol))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "PATH\tHOPS\tBIN STEPS\t\t")
	for _, r := range routes {
		marker := ""
		if r.TotalBinStep() == best.TotalBinStep() && r.HopCount() == best.HopCount() && a.pathLabel(r) == a.pathLabel(best) {
			marker = Green + "best" + Reset
		}
		fmt.Fprintf(w, "%s\t%d\t%v\t%s\t\n", a.pathLabel(r), r.HopCount(), r.BinSteps, marker)
	}
	w.Flush()
}

func (a *App) pathLabel(r route.Route) string {
	parts := make([]string, len(r.Path))
	for i, addr := range r.Path {
		parts[i] = a.symbol(addr)
	}
	return strings.Join(parts, " -> ")
}

func (a *App) symbol(addr common.Address) string {
	if t, ok := a.client.Tokens.GetByAddress(addr); ok {
		return t.Symbol
	}
	return addr.Hex()
}

func (a *App) quoteSwap(ctx context.Context) {
	in := a.prompt("[Quote] Token in: ")
	out := a.prompt("[Quote] Token out: ")
	amount, err := decimal.NewFromString(a.prompt("[Quote] Amount in: "))
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid amount: %v%s\n", err, Reset)
		return
	}

	q, err := a.client.QuoteAmount(ctx, in, out, amount)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	tokenOut, _ := a.client.Tokens.GetByAddress(q.TokenOut)
	tokenIn, _ := a.client.Tokens.GetByAddress(q.TokenIn)

	header("QUOTE")
	printField("Amount Out", flare.FromRaw(q.AmountOut, tokenOut.Decimals).StringFixed(6)+" "+tokenOut.Symbol)
	printField("Fee", flare.FromRaw(q.Fee, tokenIn.Decimals).StringFixed(6)+" "+tokenIn.Symbol)
	printField("Fee %", q.FeePercent.StringFixed(2))
	printField("Price Impact %", q.PriceImpact.StringFixed(2))
	printField("Volume USD", a.client.VolumeUSD(q).StringFixed(2))
	source := Green + string(q.Source) + Reset
	if q.IsEstimate {
		source = Yellow + string(q.Source) + " (estimate)" + Reset
	}
	printField("Source", source)
	if q.Route != nil {
		printField("Route", a.pathLabel(*q.Route))
	}
}

func (a *App) previewDistribution() {
	binRange, err := strconv.Atoi(a.prompt("[Distribution] Bins each side: "))
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid range: %v%s\n", err, Reset)
		return
	}
	mode, err := distribution.ParseMode(a.prompt("[Distribution] Mode (uniform/curve): "))
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	side := distribution.Both
	switch strings.ToLower(a.prompt("[Distribution] Side (both/x/y): ")) {
	case "x":
		side = distribution.XOnly
	case "y":
		side = distribution.YOnly
	}

	weights, err := distribution.Build(binRange, mode, side)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	header(fmt.Sprintf("DISTRIBUTION (%s, %d bins)", mode, weights.Len()))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "DELTA\tX %\tY %\t")
	for i, d := range weights.DeltaIDs {
		fmt.Fprintf(w, "%+d\t%s\t%s\t\n", d, percent(weights.DistributionX[i]), percent(weights.DistributionY[i]))
	}
	fmt.Fprintf(w, "SUM\t%s\t%s\t\n", percent(weights.SumX()), percent(weights.SumY()))
	w.Flush()
}

func (a *App) watchPool() {
	pool, ok := a.promptPool("[Watch Pool] Pool id or address: ")
	if !ok {
		return
	}

	fmt.Println(Green + "Starting Live Watch... (Press 'Enter' to stop)" + Reset)
	time.Sleep(1 * time.Second)

	stopCh := make(chan struct{})
	go func() {
		a.reader.ReadString('\n')
		close(stopCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var last pairstate.PoolState
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			pairs := a.state.Get()
			if pairs == nil {
				continue
			}
			s, ok := pairs.GetByID(pool.ID)
			if !ok || s.Equal(last) {
				continue
			}
			last = s

			x, _ := a.client.Tokens.GetByAddress(pool.TokenX)
			y, _ := a.client.Tokens.GetByAddress(pool.TokenY)
			fmt.Print("\033[H\033[2J")
			fmt.Printf(Bold+"--- LIVE MONITOR (Block: %d) ---\n"+Reset, s.BlockNumber)
			fmt.Println(Gray + "Press ENTER to return to menu." + Reset)
			header(fmt.Sprintf("%s/%s bin step %d", x.Symbol, y.Symbol, pool.BinStep))
			printField("Active ID", fmt.Sprintf("%s%d%s", Yellow, s.ActiveID, Reset))
			printField("Price", binmath.PriceDecimal(s.ActiveID, pool.BinStep, x.Decimals, y.Decimals, 8))
			printField("Reserve X", flare.FromRaw(s.ReserveX, x.Decimals).StringFixed(6))
			printField("Reserve Y", flare.FromRaw(s.ReserveY, y.Decimals).StringFixed(6))
		}
	}
}

func (a *App) printPrices(ctx context.Context) {
	header("TOKEN PRICES")
	a.client.RefreshPrices(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tUSD\t24H\t")
	fmt.Fprintln(w, "------\t---\t---\t")
	for _, t := range a.client.Tokens.All() {
		usd, change := "-", "-"
		if p, ok := a.client.Prices.USDPrice(t.Symbol); ok {
			usd = p.String()
		}
		if c, ok := a.client.Change24h(t.Symbol); ok {
			color := Green
			if c.IsNegative() {
				color = Red
			}
			change = color + c.StringFixed(2) + "%" + Reset
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", t.Symbol, usd, change)
	}
	w.Flush()
}

func (a *App) targetBin(ctx context.Context) {
	pool, ok := a.promptPool("[Target Bin] Pool id or address: ")
	if !ok {
		return
	}
	input := a.prompt("[Target Bin] Price move in % (e.g. -5), or =price: ")

	if strings.HasPrefix(input, "=") {
		price, err := strconv.ParseFloat(strings.TrimPrefix(input, "="), 64)
		if err != nil {
			fmt.Printf(Red+"[ERROR] Invalid price: %v%s\n", err, Reset)
			return
		}
		id, err := a.client.BinForPrice(pool, price)
		if err != nil {
			fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
			return
		}
		header("TARGET BIN")
		printField("Bin ID", id)
		return
	}

	delta, err := strconv.ParseFloat(input, 64)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid percentage: %v%s\n", err, Reset)
		return
	}
	target, err := a.client.TargetBin(ctx, pool, delta)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	header("TARGET BIN")
	printField("Active ID", target.ActiveID)
	printField("Bin ID", fmt.Sprintf("%d (%+d bins)", target.BinID, int64(target.BinID)-int64(target.ActiveID)))
	printField("Price", target.Price)
}

func (a *App) printProfile(ctx context.Context) {
	addr, ok := a.promptAddress("[XP] Wallet address: ")
	if !ok {
		return
	}
	p, err := a.client.XP.Profile(ctx, addr)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	progress := p.Progress()

	header("XP PROFILE")
	printField("Level", p.Level)
	printField("Total XP", p.TotalXP)
	printField("Next Level", fmt.Sprintf("%d (%.1f%%)", progress.NextThreshold, progress.Percent))
	printField("Streak", fmt.Sprintf("%d days (best %d)", p.Streak.Current, p.Streak.Longest))
	printField("Swaps", fmt.Sprintf("%d ($%s)", p.Stats.SwapCount, p.Stats.SwapVolumeUSD.StringFixed(2)))
	printField("Deposits", fmt.Sprintf("%d ($%s)", p.Stats.LiquidityAddCount, p.Stats.LiquidityVolumeUSD.StringFixed(2)))

	if len(p.Achievements) > 0 {
		header("ACHIEVEMENTS")
		for _, u := range p.Achievements {
			name := string(u.ID)
			if def, ok := xp.AchievementByID(u.ID); ok {
				name = def.Name
			}
			fmt.Printf("  %s*%s %s %s(%s)%s\n", Yellow, Reset, name, Gray, u.UnlockedAt.Format(time.DateOnly), Reset)
		}
	}
}

func (a *App) recordAction(ctx context.Context) {
	addr, ok := a.promptAddress("[XP] Wallet address: ")
	if !ok {
		return
	}
	action := xp.ActionType(a.prompt("[XP] Action (swap/add_liquidity/remove_liquidity/rebalance): "))
	volume := decimal.Zero
	if action == xp.ActionSwap || action == xp.ActionAddLiquidity {
		v, err := decimal.NewFromString(a.prompt("[XP] Volume USD: "))
		if err != nil {
			fmt.Printf(Red+"[ERROR] Invalid volume: %v%s\n", err, Reset)
			return
		}
		volume = v
	}

	res, err := a.client.XP.Record(ctx, addr, xp.Action{Type: action, VolumeUSD: volume})
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	printResult(res)
}

func (a *App) exportXP(ctx context.Context) {
	addr, ok := a.promptAddress("[XP] Wallet address: ")
	if !ok {
		return
	}
	data, err := a.client.XP.Export(ctx, addr)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	header("XP EXPORT")
	fmt.Println(string(data))
}

func (a *App) sendSwap(ctx context.Context) {
	sender, ok := a.keySender()
	if !ok {
		return
	}
	in := a.prompt("[Swap] Token in: ")
	out := a.prompt("[Swap] Token out: ")
	amount, err := decimal.NewFromString(a.prompt("[Swap] Amount in: "))
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid amount: %v%s\n", err, Reset)
		return
	}

	q, err := a.client.QuoteAmount(ctx, in, out, amount)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	reqs, err := a.client.SwapRequests(ctx, q, sender.From())
	if err != nil {
		a.printTxError(err)
		return
	}
	runner, err := a.client.NewRunner(sender)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	receipts, err := runner.Run(ctx, reqs...)
	printReceipts(receipts)
	if err != nil {
		a.printTxError(err)
		return
	}
	fmt.Println(Green + "Swap confirmed." + Reset)

	res, err := a.client.XP.RecordSwap(ctx, sender.From(), a.client.VolumeUSD(q), lastHash(receipts))
	if err != nil {
		a.logger.Warn("Failed to record swap XP", "error", err)
		return
	}
	printResult(res)
}

func (a *App) rebalance(ctx context.Context) {
	sender, ok := a.keySender()
	if !ok {
		return
	}
	pool, ok := a.promptPool("[Rebalance] Pool id or address: ")
	if !ok {
		return
	}
	var ids []uint32
	for _, f := range strings.Split(a.prompt("[Rebalance] Bin ids to withdraw (comma separated): "), ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil {
			fmt.Printf(Red+"[ERROR] Invalid bin id %q%s\n", f, Reset)
			return
		}
		ids = append(ids, uint32(id))
	}
	binRange, err := strconv.Atoi(a.prompt("[Rebalance] New bins each side: "))
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid range: %v%s\n", err, Reset)
		return
	}
	mode, err := distribution.ParseMode(a.prompt("[Rebalance] Mode (uniform/curve): "))
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	plan, err := a.client.RebalancePlan(ctx, sender.From(), pool, ids, binRange, mode)
	if err != nil {
		a.printTxError(err)
		return
	}
	runner, err := a.client.NewRunner(sender)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	machine := txflow.NewRebalanceMachine()
	machine.Subscribe(func(t txflow.Transition) {
		fmt.Printf("  %s%s -> %s%s\n", Gray, t.From, t.To, Reset)
	})
	receipts, err := runner.Rebalance(ctx, machine, plan)
	printReceipts(receipts)
	if err != nil {
		a.printTxError(err)
		return
	}
	fmt.Println(Green + "Rebalance complete." + Reset)

	res, err := a.client.XP.RecordRebalance(ctx, sender.From(), lastHash(receipts))
	if err != nil {
		a.logger.Warn("Failed to record rebalance XP", "error", err)
		return
	}
	printResult(res)
}

// --- HELPERS ---

func (a *App) prompt(label string) string {
	fmt.Print("\n" + Bold + label + Reset)
	input, _ := a.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (a *App) promptAddress(label string) (common.Address, bool) {
	input := a.prompt(label)
	if !common.IsHexAddress(input) {
		fmt.Println(Red + "[ERROR] Invalid address." + Reset)
		return common.Address{}, false
	}
	return common.HexToAddress(input), true
}

func (a *App) promptPool(label string) (poolregistry.PoolView, bool) {
	input := a.prompt(label)
	if id, err := strconv.ParseUint(input, 10, 64); err == nil {
		if p, ok := a.client.Pools.GetByID(id); ok {
			return p, true
		}
	} else if common.IsHexAddress(input) {
		if p, ok := a.client.Pools.GetByAddress(common.HexToAddress(input)); ok {
			return p, true
		}
	}
	fmt.Println(Red + "[NOT FOUND] Pool not in registry." + Reset)
	return poolregistry.PoolView{}, false
}

func (a *App) keySender() (*txflow.KeySender, bool) {
	hexKey := strings.TrimPrefix(os.Getenv(privateKeyEnv), "0x")
	if hexKey == "" {
		fmt.Printf(Yellow+"[INFO] Set %s to send transactions.%s\n", privateKeyEnv, Reset)
		return nil, false
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid %s: %v%s\n", privateKeyEnv, err, Reset)
		return nil, false
	}
	return a.client.NewKeySender(key), true
}

func (a *App) printTxError(err error) {
	kind := txflow.Classify(err)
	a.logger.Warn("Transaction flow failed", "kind", kind.String(), "error", err)
	if kind == txflow.KindBenign {
		return
	}
	msg := txflow.UserMessage(err)
	if errors.Is(err, context.Canceled) {
		msg = "Cancelled."
	}
	fmt.Println(Red + "[FAILED] " + msg + Reset)
}

func printReceipts(receipts []*types.Receipt) {
	for _, r := range receipts {
		fmt.Printf("  %sconfirmed%s %s (block %s)\n", Green, Reset, r.TxHash.Hex(), r.BlockNumber)
	}
}

func lastHash(receipts []*types.Receipt) common.Hash {
	if len(receipts) == 0 {
		return common.Hash{}
	}
	return receipts[len(receipts)-1].TxHash
}

func printResult(res *xp.Result) {
	header("XP EARNED")
	printField("XP", fmt.Sprintf("+%d", res.XPEarned))
	printField("Multiplier", res.Reward.Multiplier.StringFixed(2))
	printField("Total", res.Profile.TotalXP)
	if res.LeveledUp {
		printField("Level", fmt.Sprintf("%s%d -> %d%s", Green, res.PreviousLevel, res.Profile.Level, Reset))
	}
	names := make([]string, 0, len(res.NewAchievements))
	for _, ach := range res.NewAchievements {
		names = append(names, ach.Name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		printField("Unlocked", strings.Join(names, ", "))
	}
}

// Helper for aligned printing
func printField(key string, value any) {
	fmt.Printf("  %s%-15s%s %v\n", Gray, key+":", Reset, value)
}

// percent renders an 18-decimal weight as a percentage.
func percent(w *big.Int) string {
	return decimal.NewFromBigInt(w, -16).StringFixed(2)
}

func exitConsole() {
	fmt.Println(Yellow + "Exiting..." + Reset)
	os.Exit(0)
}

func loadConfig() (*config.ClientConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
