package strategy

import "fmt"

// MissingSettingError reports a required strategy setting that was not
// configured. Fatal at startup.
type MissingSettingError struct {
	Key string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("missing required setting %q", e.Key)
}

// ConfigurationError reports an invalid strategy configuration, typically a
// market whose quote asset is not backed by its base asset. Fatal at startup.
type ConfigurationError struct {
	Market string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Market == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration for market %s: %s", e.Market, e.Reason)
}

// MissingMarketDataError reports that the settlement price for a market was
// requested but is not present in the ticker snapshot. Fatal for that
// market's evaluation this tick, retried next tick.
type MissingMarketDataError struct {
	Market string
}

func (e *MissingMarketDataError) Error() string {
	return fmt.Sprintf("market %s has no settlement price", e.Market)
}

// InconsistentDebtStateError reports a debt position count that matches
// neither an uninitialized account nor a fully initialized one. The debt
// manager takes no action on ambiguous state.
type InconsistentDebtStateError struct {
	Have int
	Want int
}

func (e *InconsistentDebtStateError) Error() string {
	return fmt.Sprintf("inconsistent debt state: %d positions, expected 0 or %d", e.Have, e.Want)
}
