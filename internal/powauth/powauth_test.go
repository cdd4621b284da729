package powauth

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

// Difficulty 8 solves in ~256 hashes on average; keeps the test fast while
// still exercising the real search.
const testDifficulty = 8

func TestStart_SolvesAndVerifies(t *testing.T) {
	a := &Authenticator{Difficulty: testDifficulty, ProgressEvery: 16}
	progress, result := a.Start(context.Background())

	sawSolving := false
	for p := range progress {
		if p.Phase == PhaseSolving {
			sawSolving = true
		}
	}
	res := <-result
	if res.Err != nil {
		t.Fatalf("solve failed: %v", res.Err)
	}
	kp := res.Keypair
	if !sawSolving {
		t.Fatal("no solving progress reported")
	}

	if len(kp.PrivateKeyHex) != PrivateKeyHexLen {
		t.Fatalf("private key length %d want %d", len(kp.PrivateKeyHex), PrivateKeyHexLen)
	}
	pub, err := hex.DecodeString(kp.PublicKeyHex)
	if err != nil {
		t.Fatalf("public key not hex: %v", err)
	}
	if !VerifySolution(pub, kp.Nonce, testDifficulty) {
		t.Fatalf("nonce %d does not satisfy difficulty %d", kp.Nonce, testDifficulty)
	}
	if kp.KeyID != DeriveKeyID(pub) {
		t.Fatalf("key id %q does not derive from public key", kp.KeyID)
	}
}

func TestStart_Cancelled(t *testing.T) {
	// Difficulty 64 is unsolvable in any reasonable time; the task must stop
	// on cancellation rather than run forever.
	a := &Authenticator{Difficulty: 64, ProgressEvery: 64}
	ctx, cancel := context.WithCancel(context.Background())
	_, result := a.Start(ctx)

	cancel()
	select {
	case res := <-result:
		if res.Err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("solver did not stop after cancel")
	}
}

func TestSignIn_RoundTrip(t *testing.T) {
	a := &Authenticator{Difficulty: testDifficulty}
	_, result := a.Start(context.Background())
	kp := (<-result).Keypair

	keyID, err := SignIn(kp.PrivateKeyHex, kp.PublicKeyHex)
	if err != nil {
		t.Fatalf("sign in with own key failed: %v", err)
	}
	if keyID != kp.KeyID {
		t.Fatalf("key id %q want %q", keyID, kp.KeyID)
	}
}

func TestSignIn_Rejects(t *testing.T) {
	a := &Authenticator{Difficulty: testDifficulty}
	_, result := a.Start(context.Background())
	kp := (<-result).Keypair

	cases := []struct {
		name  string
		input string
	}{
		{"too short", kp.PrivateKeyHex[:63]},
		{"too long", kp.PrivateKeyHex + "ab"},
		{"not hex", strings.Repeat("z", 64)},
		{"empty", ""},
		{"wrong key", strings.Repeat("1", 64)},
	}
	for _, tc := range cases {
		if _, err := SignIn(tc.input, kp.PublicKeyHex); err != ErrInvalidKey {
			t.Fatalf("%s: got %v want ErrInvalidKey", tc.name, err)
		}
	}
}

func TestLeadingZeroBits(t *testing.T) {
	cases := []struct {
		sum  []byte
		want int
	}{
		{[]byte{0xff}, 0},
		{[]byte{0x80}, 0},
		{[]byte{0x7f}, 1},
		{[]byte{0x01}, 7},
		{[]byte{0x00, 0xff}, 8},
		{[]byte{0x00, 0x0f}, 12},
		{[]byte{0x00, 0x00, 0x00}, 24},
	}
	for _, tc := range cases {
		if got := leadingZeroBits(tc.sum); got != tc.want {
			t.Fatalf("leadingZeroBits(%x)=%d want %d", tc.sum, got, tc.want)
		}
	}
}
