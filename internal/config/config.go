// Package config loads the §6 environment-variable surface into a
// validated Config. Grounded on the teacher's internal/config (field-by-
// field Validate with a ValidationError type, aggregating every failure
// before returning), reshaped from the teacher's YAML-file-plus-env-
// expansion loader to this spec's pure-environment surface (credential
// loading and per-adapter endpoints are an external collaborator per
// spec.md §1, so this package only recognizes the core's own GRID_* and
// EXCHANGE variables).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gridbot/internal/grid"
	"gridbot/internal/ordermanager"
	"gridbot/pkg/apperrors"
)

// Config is everything the core needs to build a grid.Config and an
// ordermanager.Config, plus the adapter selector. Per-adapter credentials
// and endpoints are read directly by the adapter construction code, not by
// this package (§6: "opaque to the core").
type Config struct {
	Exchange string
	Grid     grid.Config
	Manager  ordermanager.Config
}

// ValidationError names the offending field, matching the teacher's
// error shape so validation failures read the same way across the repo.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %q): %s", e.Field, e.Value, e.Message)
}

// Load reads the §6 GRID_* and EXCHANGE environment variables, applies the
// spec's design-value timings via ordermanager.DefaultTimings, and
// validates the result. Any failure is wrapped in apperrors.ErrInvalidConfig
// (fatal at startup per §7).
func Load() (Config, error) {
	var errs []string
	get := func(key string) string { return os.Getenv(key) }

	strategyID := get("GRID_STRATEGY_ID")
	if strategyID == "" {
		strategyID = "grid-default"
	}

	symbol := get("GRID_SYMBOL")
	if symbol == "" {
		errs = append(errs, ValidationError{Field: "GRID_SYMBOL", Message: "is required"}.Error())
	}

	exchangeName := get("EXCHANGE")
	if exchangeName == "" {
		errs = append(errs, ValidationError{Field: "EXCHANGE", Message: "is required"}.Error())
	}

	levels, err := parseIntField("GRID_LEVELS", get("GRID_LEVELS"), &errs)
	if err == nil && levels < 1 {
		errs = append(errs, ValidationError{Field: "GRID_LEVELS", Value: get("GRID_LEVELS"), Message: "must be >= 1"}.Error())
	}

	spacingMode := grid.SpacingMode(strings.ToUpper(get("GRID_SPACING_MODE")))
	var spacing, spacingPercent decimal.Decimal
	switch spacingMode {
	case grid.SpacingABS:
		spacing = parseDecimalField("GRID_SPACING", get("GRID_SPACING"), &errs)
		if spacing.Sign() <= 0 {
			errs = append(errs, ValidationError{Field: "GRID_SPACING", Value: get("GRID_SPACING"), Message: "must be > 0 in ABS mode"}.Error())
		}
	case grid.SpacingPercent:
		spacingPercent = parseDecimalField("GRID_SPACING_PERCENT", get("GRID_SPACING_PERCENT"), &errs)
		if spacingPercent.Sign() <= 0 {
			errs = append(errs, ValidationError{Field: "GRID_SPACING_PERCENT", Value: get("GRID_SPACING_PERCENT"), Message: "must be > 0 in PERCENT mode"}.Error())
		}
	default:
		errs = append(errs, ValidationError{Field: "GRID_SPACING_MODE", Value: get("GRID_SPACING_MODE"), Message: "must be ABS or PERCENT"}.Error())
	}

	quantity := parseDecimalField("GRID_QUANTITY", get("GRID_QUANTITY"), &errs)
	if quantity.Sign() <= 0 {
		errs = append(errs, ValidationError{Field: "GRID_QUANTITY", Value: get("GRID_QUANTITY"), Message: "must be > 0"}.Error())
	}

	postOnly, perr := parseBoolField("GRID_POST_ONLY", get("GRID_POST_ONLY"))
	if perr != nil {
		errs = append(errs, perr.Error())
	}

	cancelTimeoutMs, err := parseIntField("GRID_CANCEL_TIMEOUT_MS", get("GRID_CANCEL_TIMEOUT_MS"), &errs)
	if err == nil && cancelTimeoutMs < 1 {
		errs = append(errs, ValidationError{Field: "GRID_CANCEL_TIMEOUT_MS", Value: get("GRID_CANCEL_TIMEOUT_MS"), Message: "must be >= 1"}.Error())
	}

	maxPosition := parseDecimalField("GRID_MAX_POSITION", get("GRID_MAX_POSITION"), &errs)
	if maxPosition.Sign() < 0 {
		errs = append(errs, ValidationError{Field: "GRID_MAX_POSITION", Value: get("GRID_MAX_POSITION"), Message: "must be >= 0"}.Error())
	}

	maxOpenOrders, err := parseIntField("GRID_MAX_OPEN_ORDERS", get("GRID_MAX_OPEN_ORDERS"), &errs)
	if err == nil && maxOpenOrders < 1 {
		errs = append(errs, ValidationError{Field: "GRID_MAX_OPEN_ORDERS", Value: get("GRID_MAX_OPEN_ORDERS"), Message: "must be >= 1"}.Error())
	}

	if len(errs) > 0 {
		return Config{}, apperrors.New(apperrors.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	gcfg := grid.Config{
		Levels:         levels,
		SpacingMode:    spacingMode,
		Spacing:        spacing,
		SpacingPercent: spacingPercent,
	}

	mcfg := ordermanager.DefaultTimings(ordermanager.Config{
		StrategyID:    strategyID,
		Symbol:        symbol,
		ExchangeName:  exchangeName,
		PostOnly:      postOnly,
		OrderQuantity: quantity,
		MaxPosition:   maxPosition,
		MaxOpenOrders: maxOpenOrders,
		CancelTimeout: time.Duration(cancelTimeoutMs) * time.Millisecond,
	})

	return Config{Exchange: exchangeName, Grid: gcfg, Manager: mcfg}, nil
}

// snapshot is the YAML-friendly view of Config used by String, grounded
// on the teacher's Config.String (a yaml.Marshal of the effective
// configuration logged once at startup for diagnostics). Unlike the
// teacher's version there is nothing here to mask: credentials are an
// external collaborator's concern, never loaded into this struct.
type snapshot struct {
	Exchange       string           `yaml:"exchange"`
	Symbol         string           `yaml:"symbol"`
	StrategyID     string           `yaml:"strategy_id"`
	Levels         int              `yaml:"levels"`
	SpacingMode    grid.SpacingMode `yaml:"spacing_mode"`
	Spacing        decimal.Decimal  `yaml:"spacing,omitempty"`
	SpacingPercent decimal.Decimal  `yaml:"spacing_percent,omitempty"`
	Quantity       decimal.Decimal  `yaml:"quantity"`
	PostOnly       bool             `yaml:"post_only"`
	CancelTimeout  time.Duration    `yaml:"cancel_timeout"`
	MaxPosition    decimal.Decimal  `yaml:"max_position"`
	MaxOpenOrders  int              `yaml:"max_open_orders"`
}

// String renders the effective configuration as YAML, for a single
// startup diagnostics log line.
func (c Config) String() string {
	snap := snapshot{
		Exchange:       c.Exchange,
		Symbol:         c.Manager.Symbol,
		StrategyID:     c.Manager.StrategyID,
		Levels:         c.Grid.Levels,
		SpacingMode:    c.Grid.SpacingMode,
		Spacing:        c.Grid.Spacing,
		SpacingPercent: c.Grid.SpacingPercent,
		Quantity:       c.Manager.OrderQuantity,
		PostOnly:       c.Manager.PostOnly,
		CancelTimeout:  c.Manager.CancelTimeout,
		MaxPosition:    c.Manager.MaxPosition,
		MaxOpenOrders:  c.Manager.MaxOpenOrders,
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Sprintf("<config marshal error: %v>", err)
	}
	return string(data)
}

func parseIntField(field, raw string, errs *[]string) (int, error) {
	if raw == "" {
		*errs = append(*errs, ValidationError{Field: field, Message: "is required"}.Error())
		return 0, fmt.Errorf("missing")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: field, Value: raw, Message: "must be an integer"}.Error())
		return 0, err
	}
	return v, nil
}

func parseDecimalField(field, raw string, errs *[]string) decimal.Decimal {
	if raw == "" {
		*errs = append(*errs, ValidationError{Field: field, Message: "is required"}.Error())
		return decimal.Zero
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: field, Value: raw, Message: "must be a decimal number"}.Error())
		return decimal.Zero
	}
	return v
}

func parseBoolField(field, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ValidationError{Field: field, Value: raw, Message: "must be a boolean"}
	}
	return v, nil
}
