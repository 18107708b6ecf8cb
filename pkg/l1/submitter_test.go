// Copyright 2025 Certen Protocol

package l1

import (
	"math/big"
	"testing"
)

func TestComputeDynamicFees_StandardPolicy(t *testing.T) {
	baseFee := big.NewInt(10_000_000_000) // 10 gwei
	suggestedTip := big.NewInt(1_000_000_000)

	fees := computeDynamicFees(baseFee, suggestedTip, big.NewInt(2), big.NewInt(1))

	wantTip := big.NewInt(1_000_000_000)
	wantCap := big.NewInt(21_000_000_000) // 10gwei*2 + 1gwei
	if fees.GasTipCap.Cmp(wantTip) != 0 {
		t.Errorf("tip cap = %s, want %s", fees.GasTipCap, wantTip)
	}
	if fees.GasFeeCap.Cmp(wantCap) != 0 {
		t.Errorf("fee cap = %s, want %s", fees.GasFeeCap, wantCap)
	}
}

func TestComputeDynamicFees_AggressiveExceedsStandard(t *testing.T) {
	baseFee := big.NewInt(10_000_000_000)
	suggestedTip := big.NewInt(1_000_000_000)

	standard := computeDynamicFees(baseFee, suggestedTip, big.NewInt(2), big.NewInt(1))
	aggressive := computeDynamicFees(baseFee, suggestedTip, big.NewInt(3), big.NewInt(2))

	if aggressive.GasFeeCap.Cmp(standard.GasFeeCap) <= 0 {
		t.Errorf("aggressive fee cap %s must exceed standard %s", aggressive.GasFeeCap, standard.GasFeeCap)
	}
	if aggressive.GasTipCap.Cmp(standard.GasTipCap) <= 0 {
		t.Errorf("aggressive tip cap %s must exceed standard %s", aggressive.GasTipCap, standard.GasTipCap)
	}
}

func TestNewSubmitter_DerivesAddressFromKey(t *testing.T) {
	// Well-known test private key (Hardhat/Anvil account #0).
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	s, err := NewSubmitter(nil, SubmitterConfig{PrivateKeyHex: key, Policy: FeePolicyFixed})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	if s.Address().Hex() == "0x0000000000000000000000000000000000000000" {
		t.Error("expected a non-zero derived address")
	}
}

func TestNewSubmitter_RejectsMalformedKey(t *testing.T) {
	_, err := NewSubmitter(nil, SubmitterConfig{PrivateKeyHex: "not-hex"})
	if err == nil {
		t.Fatal("expected an error for a malformed private key")
	}
}

func TestSubmitter_NonceLifecycle(t *testing.T) {
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	s, err := NewSubmitter(nil, SubmitterConfig{PrivateKeyHex: key})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	// Seed the nonce directly to avoid touching the network.
	s.nonce = 7
	s.nonceValid = true

	n, err := s.NextNonce(nil)
	if err != nil {
		t.Fatalf("NextNonce: %v", err)
	}
	if n != 7 {
		t.Fatalf("nonce = %d, want 7", n)
	}

	s.CommitNonce()
	n, err = s.NextNonce(nil)
	if err != nil {
		t.Fatalf("NextNonce after commit: %v", err)
	}
	if n != 8 {
		t.Fatalf("nonce after commit = %d, want 8", n)
	}

	s.ReleaseNonce()
	if s.nonceValid {
		t.Error("expected nonceValid to be false after ReleaseNonce")
	}
}
