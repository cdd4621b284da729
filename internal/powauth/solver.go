package powauth

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"math/bits"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultDifficulty is the required number of leading zero bits in
// Keccak256(pubkey || nonce). An anti-spam cost on account creation, not a
// security proof.
const DefaultDifficulty = 18

const defaultProgressEvery = 4096

type Phase string

const (
	PhaseGeneratingKeys Phase = "generating_keys"
	PhaseSolving        Phase = "solving_pow"
	PhaseSolved         Phase = "solved"
)

type Progress struct {
	Phase  Phase
	Hashes uint64
}

type Result struct {
	Keypair *Keypair
	Err     error
}

// Authenticator generates anonymous identities gated by proof of work.
type Authenticator struct {
	Difficulty int
	// ProgressEvery bounds how often the solver checks for cancellation and
	// reports hash counts. Reporting every iteration would dominate the search.
	ProgressEvery    int
	ProgressInterval time.Duration
}

// Start runs key generation and the PoW search in a background goroutine and
// returns its progress and result channels. Both are closed when the task
// finishes. Cancel ctx to abandon the search; that is its only failure mode —
// given enough time the search always terminates.
func (a *Authenticator) Start(ctx context.Context) (<-chan Progress, <-chan Result) {
	progress := make(chan Progress, 8)
	result := make(chan Result, 1)
	go func() {
		defer close(progress)
		defer close(result)
		kp, err := a.generate(ctx, progress)
		result <- Result{Keypair: kp, Err: err}
	}()
	return progress, result
}

func (a *Authenticator) generate(ctx context.Context, progress chan<- Progress) (*Keypair, error) {
	emit(progress, Progress{Phase: PhaseGeneratingKeys})

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	priv := crypto.FromECDSA(key)
	pub := crypto.FromECDSAPub(&key.PublicKey)

	nonce, hashes, err := a.Solve(ctx, pub, progress)
	if err != nil {
		return nil, err
	}
	emit(progress, Progress{Phase: PhaseSolved, Hashes: hashes})

	return &Keypair{
		PrivateKeyHex: hex.EncodeToString(priv),
		PublicKeyHex:  hex.EncodeToString(pub),
		KeyID:         DeriveKeyID(pub),
		Nonce:         nonce,
		Hashes:        hashes,
	}, nil
}

// Solve searches nonce space 0,1,2,... for Keccak256(pub || nonce) with at
// least Difficulty leading zero bits. Cancellation is observed between
// progress batches, never mid-batch.
func (a *Authenticator) Solve(ctx context.Context, pub []byte, progress chan<- Progress) (uint64, uint64, error) {
	difficulty := a.Difficulty
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	every := a.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}

	buf := make([]byte, len(pub)+8)
	copy(buf, pub)

	for nonce := uint64(0); ; nonce++ {
		if nonce%uint64(every) == 0 {
			if err := ctx.Err(); err != nil {
				return 0, nonce, err
			}
			emit(progress, Progress{Phase: PhaseSolving, Hashes: nonce})
		}
		binary.BigEndian.PutUint64(buf[len(pub):], nonce)
		if leadingZeroBits(crypto.Keccak256(buf)) >= difficulty {
			return nonce, nonce + 1, nil
		}
	}
}

// VerifySolution checks a claimed nonce against a public key. Used when
// replaying a registration against the remote API.
func VerifySolution(pub []byte, nonce uint64, difficulty int) bool {
	buf := make([]byte, len(pub)+8)
	copy(buf, pub)
	binary.BigEndian.PutUint64(buf[len(pub):], nonce)
	return leadingZeroBits(crypto.Keccak256(buf)) >= difficulty
}

func leadingZeroBits(sum []byte) int {
	n := 0
	for _, b := range sum {
		if b == 0 {
			n += 8
			continue
		}
		n += bits.LeadingZeros8(b)
		break
	}
	return n
}

// emit drops progress updates a slow receiver has not drained; the solver
// must never block on reporting.
func emit(ch chan<- Progress, p Progress) {
	select {
	case ch <- p:
	default:
	}
}
