package state

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const journalPrefix = "journal:"

// CommandRecord is one imperative command the bot issued: an order placed or
// cancelled, a borrow, or a debt adjustment. Records are an audit trail
// only; nothing reads them back at runtime.
type CommandRecord struct {
	Time    time.Time `msgpack:"time"`
	Kind    string    `msgpack:"kind"`
	Market  string    `msgpack:"market,omitempty"`
	Symbol  string    `msgpack:"symbol,omitempty"`
	Price   float64   `msgpack:"price,omitempty"`
	Amount  float64   `msgpack:"amount,omitempty"`
	OrderID string    `msgpack:"order_id,omitempty"`
	Error   string    `msgpack:"error,omitempty"`
}

type Journal struct {
	store Store
}

func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// Append writes one record, msgpack-encoded, keyed by the record timestamp.
func (j *Journal) Append(ctx context.Context, rec CommandRecord) error {
	if j == nil || j.store == nil {
		return nil
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%020d", journalPrefix, rec.Time.UnixNano())
	return j.store.Set(ctx, key, base64.StdEncoding.EncodeToString(payload))
}

// DecodeCommandRecord reverses the journal encoding.
func DecodeCommandRecord(value string) (CommandRecord, error) {
	payload, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return CommandRecord{}, err
	}
	var rec CommandRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return CommandRecord{}, err
	}
	return rec, nil
}
