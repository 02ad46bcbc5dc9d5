// Package economy sequences the game's economic actions — fishing,
// purchases and sells — across the durable store and the payment rail.
// Every action runs its read->mutate->persist sequence inside a
// per-address critical section, and writes a journal intent before any
// step that can leave partial state behind.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"basedfrenzy.com/internal/game"
	"basedfrenzy.com/internal/persistence/journal"
	"basedfrenzy.com/internal/persistence/store"
	"basedfrenzy.com/internal/web3"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("player not found")
	ErrUpstream     = errors.New("payment rail failure")
	ErrInternal     = errors.New("persistence failure")
)

// CartLine is one requested shop pack.
type CartLine struct {
	ItemID   string `json:"itemId"`
	Quantity int64  `json:"quantity"`
}

// FishingResult reports one catch attempt. Success false with a message is
// a business outcome, not an error.
type FishingResult struct {
	Success   bool       `json:"success"`
	Item      *game.Item `json:"item,omitempty"`
	RodBroken bool       `json:"rodBroken"`
	Message   string     `json:"message"`
}

// QuoteLine is the per-pack price breakdown of a quote.
type QuoteLine struct {
	ItemID     string `json:"itemId"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
	TotalPrice int64  `json:"totalPrice"`
}

// Quote is the pure pricing answer of the purchase flow's first phase.
type Quote struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	TotalCost   int64       `json:"totalCost"`
	Recipient   string      `json:"recipient"`
	ItemDetails []QuoteLine `json:"itemDetails"`
	CartSummary string      `json:"cartSummary"`
}

// CreditResult reports what a verified purchase added.
type CreditResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ItemsAdded     int64  `json:"itemsAdded"`
	NewBait        int64  `json:"newBait"`
	NewFishingRods int64  `json:"newFishingRods"`
}

// SellResult reports a settled (or refused) sale. NewBalance echoes the
// client-supplied balance plus the payout; RailBalance is the
// adapter-sourced figure.
type SellResult struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message,omitempty"`
	FrenzyGained int64           `json:"frenzyGained,omitempty"`
	NewBalance   decimal.Decimal `json:"newBalance"`
	RailBalance  decimal.Decimal `json:"railBalance"`
	TxHash       string          `json:"txHash,omitempty"`
}

// Pipeline owns the economic action sequencing.
type Pipeline struct {
	store        *store.Store
	rail         web3.Rail
	journal      *journal.Journal
	loot         *game.LootEngine
	payoutWallet string
	log          *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st *store.Store, rail web3.Rail, jr *journal.Journal, loot *game.LootEngine, payoutWallet string, logger *log.Logger) *Pipeline {
	return &Pipeline{
		store:        st,
		rail:         rail,
		journal:      jr,
		loot:         loot,
		payoutWallet: payoutWallet,
		log:          logger,
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockFor serializes economic actions per address; two concurrent actions
// for one identity never interleave between read and persist.
func (p *Pipeline) lockFor(address string) func() {
	p.mu.Lock()
	l, ok := p.locks[address]
	if !ok {
		l = &sync.Mutex{}
		p.locks[address] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// load enforces the shared precondition: a well-formed address whose
// player and ledger records both exist. Nothing is mutated on failure.
func (p *Pipeline) load(ctx context.Context, address string) (store.Player, game.Ledger, error) {
	if !game.ValidAddress(address) {
		return store.Player{}, game.Ledger{}, fmt.Errorf("%w: bad address", ErrInvalidInput)
	}
	player, err := p.store.GetPlayer(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return store.Player{}, game.Ledger{}, ErrNotFound
	}
	if err != nil {
		return store.Player{}, game.Ledger{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	ledger, err := p.store.GetLedger(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return store.Player{}, game.Ledger{}, ErrNotFound
	}
	if err != nil {
		return store.Player{}, game.Ledger{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return player, ledger, nil
}

// Fishing consumes one bait, rolls the loot table and merges the catch
// into the ledger. The bait debit precedes the roll; rod breaks floor at
// zero rods.
func (p *Pipeline) Fishing(ctx context.Context, address string) (FishingResult, error) {
	unlock := p.lockFor(address)
	defer unlock()

	player, ledger, err := p.load(ctx, address)
	if err != nil {
		return FishingResult{}, err
	}
	if player.Bait <= 0 {
		return FishingResult{Success: false, Message: "No bait available"}, nil
	}

	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageIntent, Action: journal.ActionFishing, Address: address,
	}); err != nil {
		p.log.Printf("economy: journal intent: %v", err)
	}

	player.Bait--
	item, rodBroken := p.loot.Roll()
	if rodBroken && player.FishingRods > 0 {
		player.FishingRods--
	}
	ledger.Add(item, 1)

	if err := p.store.SavePlayer(ctx, player); err != nil {
		p.journalAbort(journal.ActionFishing, address, "", err)
		return FishingResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := p.store.SaveLedger(ctx, ledger); err != nil {
		// The bait debit is already durable; the journal keeps the
		// evidence for reconciliation.
		p.journalAbort(journal.ActionFishing, address, "", err)
		return FishingResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageCommit, Action: journal.ActionFishing, Address: address,
		ItemID: item.ID, Qty: 1,
	}); err != nil {
		p.log.Printf("economy: journal commit: %v", err)
	}

	msg := fmt.Sprintf("You caught a %s!", item.Name)
	if rodBroken {
		msg = fmt.Sprintf("You caught a %s but your rod broke!", item.Name)
	}
	return FishingResult{Success: true, Item: &item, RodBroken: rodBroken, Message: msg}, nil
}

// QuotePurchase prices a cart against the fixed shop table. Pure lookup;
// an unknown pack id aborts the whole quote.
func (p *Pipeline) QuotePurchase(ctx context.Context, address string, cart []CartLine) (Quote, error) {
	if !game.ValidAddress(address) || len(cart) == 0 {
		return Quote{}, fmt.Errorf("%w: bad address or empty cart", ErrInvalidInput)
	}
	if _, err := p.store.GetPlayer(ctx, address); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	var total int64
	details := make([]QuoteLine, 0, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w: invalid quantity %d for %s", ErrInvalidInput, line.Quantity, line.ItemID)
		}
		price, ok := game.ShopPrices[line.ItemID]
		if !ok {
			return Quote{}, fmt.Errorf("%w: invalid item ID: %s", ErrInvalidInput, line.ItemID)
		}
		cost := price * line.Quantity
		total += cost
		details = append(details, QuoteLine{
			ItemID:     line.ItemID,
			Quantity:   line.Quantity,
			UnitPrice:  price,
			TotalPrice: cost,
		})
	}

	return Quote{
		Success:     true,
		Message:     "Purchase details calculated",
		TotalCost:   total,
		Recipient:   p.payoutWallet,
		ItemDetails: details,
		CartSummary: fmt.Sprintf("%d item(s) totaling %d Frenzy", len(cart), total),
	}, nil
}

// VerifyPurchase confirms the payment transaction on the rail and credits
// the cart. Credit is gated on the confirmation alone; the cart is not
// re-priced against the earlier quote.
func (p *Pipeline) VerifyPurchase(ctx context.Context, address, txHash string, cart []CartLine) (CreditResult, error) {
	if !game.ValidAddress(address) || txHash == "" || cart == nil {
		return CreditResult{}, fmt.Errorf("%w: bad request parameters", ErrInvalidInput)
	}
	for _, line := range cart {
		if line.Quantity <= 0 {
			return CreditResult{}, fmt.Errorf("%w: invalid quantity %d for %s", ErrInvalidInput, line.Quantity, line.ItemID)
		}
	}

	unlock := p.lockFor(address)
	defer unlock()

	player, err := p.store.GetPlayer(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return CreditResult{}, ErrNotFound
	}
	if err != nil {
		return CreditResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageIntent, Action: journal.ActionVerify, Address: address, TxHash: txHash,
	}); err != nil {
		p.log.Printf("economy: journal intent: %v", err)
	}

	if _, err := p.rail.VerifyTransaction(ctx, txHash); err != nil {
		p.journalAbort(journal.ActionVerify, address, txHash, err)
		return CreditResult{}, fmt.Errorf("%w: transaction verification failed: %v", ErrUpstream, err)
	}

	var itemsAdded int64
	var credited []string
	for _, line := range cart {
		kind, amount, ok := parsePack(line.ItemID)
		if !ok {
			continue
		}
		qty := amount * line.Quantity
		switch kind {
		case "bait":
			player.Bait += qty
			itemsAdded += qty
			credited = append(credited, fmt.Sprintf("%d bait", qty))
		case "rod":
			player.FishingRods += qty
			itemsAdded += qty
			credited = append(credited, fmt.Sprintf("%d fishing rod(s)", qty))
		}
	}

	if err := p.store.SavePlayer(ctx, player); err != nil {
		p.journalAbort(journal.ActionVerify, address, txHash, err)
		return CreditResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageCommit, Action: journal.ActionVerify, Address: address,
		TxHash: txHash, Qty: itemsAdded,
	}); err != nil {
		p.log.Printf("economy: journal commit: %v", err)
	}

	return CreditResult{
		Success:        true,
		Message:        fmt.Sprintf("Purchase verified! Added: %s", strings.Join(credited, ", ")),
		ItemsAdded:     itemsAdded,
		NewBait:        player.Bait,
		NewFishingRods: player.FishingRods,
	}, nil
}

// Sell debits the ledger and pays out unit value x quantity over the rail.
// The ledger debit is persisted only after the payout succeeds; a rail
// failure leaves the durable ledger untouched.
func (p *Pipeline) Sell(ctx context.Context, address, itemID string, qty int64, clientBalance decimal.Decimal) (SellResult, error) {
	if qty <= 0 {
		return SellResult{}, fmt.Errorf("%w: bad quantity %d", ErrInvalidInput, qty)
	}

	unlock := p.lockFor(address)
	defer unlock()

	_, ledger, err := p.load(ctx, address)
	if err != nil {
		return SellResult{}, err
	}

	held := ledger.Quantity(itemID)
	if held < qty {
		return SellResult{Success: false, Message: "Not enough items"}, nil
	}

	item, ok := game.ItemByID(itemID)
	if !ok {
		// A held item is always in the catalog; a miss means store drift.
		return SellResult{}, fmt.Errorf("%w: unknown item %s in ledger", ErrInternal, itemID)
	}
	payout := item.Value * qty

	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageIntent, Action: journal.ActionSell, Address: address,
		ItemID: itemID, Qty: qty, Amount: payout,
	}); err != nil {
		p.log.Printf("economy: journal intent: %v", err)
	}

	// In-memory debit before the payout call; only a successful payout
	// makes it durable.
	if err := ledger.Remove(itemID, qty); err != nil {
		return SellResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	txHash, err := p.rail.SendPayout(ctx, address, payout)
	if err != nil {
		p.journalAbort(journal.ActionSell, address, "", err)
		return SellResult{}, fmt.Errorf("%w: failed to send Frenzy tokens: %v", ErrUpstream, err)
	}

	if err := p.store.SaveLedger(ctx, ledger); err != nil {
		// Payout already left; the journal records the unpersisted debit.
		p.journalAbort(journal.ActionSell, address, txHash, err)
		return SellResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageCommit, Action: journal.ActionSell, Address: address,
		ItemID: itemID, Qty: qty, Amount: payout, TxHash: txHash,
	}); err != nil {
		p.log.Printf("economy: journal commit: %v", err)
	}

	return SellResult{
		Success:      true,
		FrenzyGained: payout,
		NewBalance:   clientBalance.Add(decimal.NewFromInt(payout)),
		RailBalance:  p.rail.GetBalance(ctx, address),
		TxHash:       txHash,
	}, nil
}

func (p *Pipeline) journalAbort(action, address, txHash string, cause error) {
	if err := p.journal.Record(journal.Entry{
		Stage: journal.StageAbort, Action: action, Address: address,
		TxHash: txHash, Reason: cause.Error(),
	}); err != nil {
		p.log.Printf("economy: journal abort: %v", err)
	}
}

// parsePack splits a shop pack id "<kind>-<amount>" into its parts.
func parsePack(id string) (kind string, amount int64, ok bool) {
	kind, raw, found := strings.Cut(id, "-")
	if !found {
		return "", 0, false
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return "", 0, false
	}
	return kind, amount, true
}
