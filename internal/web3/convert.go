package web3

import (
	"math/big"

	"github.com/shopspring/decimal"
)

func tokensFromWei(wei *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -decimals)
}

func weiFromTokens(amount int64, decimals int32) *big.Int {
	return decimal.NewFromInt(amount).Shift(decimals).BigInt()
}
