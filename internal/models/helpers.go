package models

import (
	"errors"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAddress = errors.New("invalid address")

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// WeiPerEther is 1e18.
var WeiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func IsAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeAddress lower-cases a hex address so it can be used as a map key.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsAddress(s) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(s), nil
}

func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}

func EtherToWei(eth string) (*big.Int, error) {
	d, err := decimal.NewFromString(eth)
	if err != nil {
		return nil, err
	}
	return d.Shift(18).BigInt(), nil
}
