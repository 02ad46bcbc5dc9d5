package game

import "fmt"

// Holding is one ledger line: an item and how many of it are held.
// Quantity is always positive; zero-quantity lines are removed.
type Holding struct {
	Item     Item  `json:"item"`
	Quantity int64 `json:"quantity"`
}

// Ledger is the per-address item holdings. Item ids are unique within the
// ledger; adds merge by summation.
type Ledger struct {
	Address string
	Items   []Holding
}

// Quantity returns how many of the item id the ledger holds.
func (l *Ledger) Quantity(itemID string) int64 {
	for _, h := range l.Items {
		if h.Item.ID == itemID {
			return h.Quantity
		}
	}
	return 0
}

// Add merges qty of item into the ledger, incrementing an existing line or
// inserting a new one.
func (l *Ledger) Add(item Item, qty int64) {
	if qty <= 0 {
		return
	}
	for i := range l.Items {
		if l.Items[i].Item.ID == item.ID {
			l.Items[i].Quantity += qty
			return
		}
	}
	l.Items = append(l.Items, Holding{Item: item, Quantity: qty})
}

// Remove debits qty of the item id. It fails without mutation when the
// ledger holds fewer than qty; a line debited to zero is deleted outright.
func (l *Ledger) Remove(itemID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity %d", qty)
	}
	for i := range l.Items {
		if l.Items[i].Item.ID != itemID {
			continue
		}
		if l.Items[i].Quantity < qty {
			return fmt.Errorf("holding %d of %s, cannot remove %d", l.Items[i].Quantity, itemID, qty)
		}
		l.Items[i].Quantity -= qty
		if l.Items[i].Quantity == 0 {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
		}
		return nil
	}
	return fmt.Errorf("holding 0 of %s, cannot remove %d", itemID, qty)
}
