package webhook

import "testing"

func TestSigner_Verify(t *testing.T) {
	signer := NewSigner("sk_test_secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"pay_ref_123"}}`)

	sig := signer.Sign(body)
	if len(sig) != 128 {
		t.Fatalf("expected 128 hex chars for sha512, got %d", len(sig))
	}

	if !signer.Verify(body, sig) {
		t.Error("valid signature must verify")
	}
}

func TestSigner_RejectsMutations(t *testing.T) {
	signer := NewSigner("sk_test_secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"pay_ref_123"}}`)
	sig := signer.Sign(body)

	mutatedBody := append([]byte(nil), body...)
	mutatedBody[0] ^= 0x01
	if signer.Verify(mutatedBody, sig) {
		t.Error("single-byte body mutation must fail verification")
	}

	mutatedSig := []byte(sig)
	if mutatedSig[0] == 'a' {
		mutatedSig[0] = 'b'
	} else {
		mutatedSig[0] = 'a'
	}
	if signer.Verify(body, string(mutatedSig)) {
		t.Error("single-byte signature mutation must fail verification")
	}
}

func TestSigner_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	sig := NewSigner("sk_test_secret").Sign(body)

	if NewSigner("sk_other_secret").Verify(body, sig) {
		t.Error("signature from another secret must fail verification")
	}
}
