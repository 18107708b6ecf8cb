// Copyright 2025 Certen Protocol

package da

import (
	"bytes"
	"testing"
)

func TestPackBlob_RoundTripsSmallPayload(t *testing.T) {
	payload := []byte("certen rollup batch payload")

	blob, err := packBlob(payload)
	if err != nil {
		t.Fatalf("packBlob: %v", err)
	}

	var recovered []byte
	for elem := 0; elem*32 < len(blob); elem++ {
		word := blob[elem*32 : elem*32+32]
		recovered = append(recovered, word[1:]...)
	}
	recovered = recovered[:len(payload)]

	if !bytes.Equal(recovered, payload) {
		t.Errorf("recovered payload = %q, want %q", recovered, payload)
	}
}

func TestPackBlob_LeadingByteIsAlwaysZero(t *testing.T) {
	payload := bytes.Repeat([]byte{0xff}, 100)

	blob, err := packBlob(payload)
	if err != nil {
		t.Fatalf("packBlob: %v", err)
	}

	for elem := 0; elem*32 < len(blob); elem++ {
		if blob[elem*32] != 0x00 {
			t.Fatalf("field element %d leading byte = 0x%02x, want 0x00 (must stay below BLS modulus)", elem, blob[elem*32])
		}
	}
}

func TestPackBlob_RejectsOversizedPayload(t *testing.T) {
	tooBig := make([]byte, 200_000)
	if _, err := packBlob(tooBig); err == nil {
		t.Fatal("expected an error for a payload exceeding single-blob capacity")
	}
}
