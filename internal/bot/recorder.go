package bot

import (
	"errors"

	"spot_trader/internal/models"
	"spot_trader/internal/trade"
)

// Recorders fans every log entry out to several sinks, e.g. sqlite and the websocket hub.
type Recorders []trade.Recorder

func (rs Recorders) RecordTrade(t models.TradeRecord) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordTrade(t))
	}
	return errors.Join(errs...)
}

func (rs Recorders) RecordBalances(s models.BalanceSnapshot) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordBalances(s))
	}
	return errors.Join(errs...)
}

func (rs Recorders) RecordSignal(s models.TradeSignal) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordSignal(s))
	}
	return errors.Join(errs...)
}
