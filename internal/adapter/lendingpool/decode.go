package lendingpool

import (
	"math/big"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/multicall"
)

type reserveConfig struct {
	Decimals                 int
	LTV                      *big.Int
	LiquidationThreshold     *big.Int
	UsageAsCollateralEnabled bool
	BorrowingEnabled         bool
	IsActive                 bool
	IsFrozen                 bool
}

func decodeConfig(r multicall.Result) (reserveConfig, bool) {
	if !r.Ok() {
		return reserveConfig{}, false
	}
	vals, err := calldata.Decode(dataProviderABI, "getReserveConfigurationData", r.Bytes)
	if err != nil || len(vals) < 10 {
		return reserveConfig{}, false
	}
	decimals, _ := vals[0].(*big.Int)
	ltv, _ := vals[1].(*big.Int)
	liqThresh, _ := vals[2].(*big.Int)
	usageCollateral, _ := vals[5].(bool)
	borrowing, _ := vals[6].(bool)
	active, _ := vals[8].(bool)
	frozen, _ := vals[9].(bool)
	d := 18
	if decimals != nil {
		d = int(decimals.Int64())
	}
	return reserveConfig{
		Decimals:                 d,
		LTV:                      ltv,
		LiquidationThreshold:     liqThresh,
		UsageAsCollateralEnabled: usageCollateral,
		BorrowingEnabled:         borrowing,
		IsActive:                 active,
		IsFrozen:                 frozen,
	}, true
}

type reserveDataRow struct {
	TotalAToken          *big.Int
	TotalVariableDebt    *big.Int
	LiquidityRate        *big.Int
	VariableBorrowRate   *big.Int
	LiquidityIndex       *big.Int
	VariableBorrowIndex  *big.Int
}

func decodeReserveData(r multicall.Result) (reserveDataRow, bool) {
	if !r.Ok() {
		return reserveDataRow{}, false
	}
	vals, err := calldata.Decode(dataProviderABI, "getReserveData", r.Bytes)
	if err != nil || len(vals) < 12 {
		return reserveDataRow{}, false
	}
	row := reserveDataRow{}
	row.TotalAToken, _ = vals[2].(*big.Int)
	row.TotalVariableDebt, _ = vals[4].(*big.Int)
	row.LiquidityRate, _ = vals[5].(*big.Int)
	row.VariableBorrowRate, _ = vals[6].(*big.Int)
	row.LiquidityIndex, _ = vals[9].(*big.Int)
	row.VariableBorrowIndex, _ = vals[10].(*big.Int)
	return row, true
}

type reserveCaps struct {
	BorrowCap *big.Int
	SupplyCap *big.Int
}

func decodeCaps(r multicall.Result) (reserveCaps, bool) {
	if !r.Ok() {
		return reserveCaps{}, false
	}
	vals, err := calldata.Decode(dataProviderABI, "getReserveCaps", r.Bytes)
	if err != nil || len(vals) < 2 {
		return reserveCaps{}, false
	}
	borrowCap, _ := vals[0].(*big.Int)
	supplyCap, _ := vals[1].(*big.Int)
	return reserveCaps{BorrowCap: borrowCap, SupplyCap: supplyCap}, true
}
