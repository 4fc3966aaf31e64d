package pool

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// Keep this domain stable; it is part of every consensus-critical draw.
const entropyDomain = "sweepchain/v1/pool/entropy"

// EntropyInput is everything a RandomnessSource may mix into a draw.
type EntropyInput struct {
	ChainID      string
	Height       int64
	Time         int64
	BlockHash    []byte
	Proposer     []byte
	RoundID      uint64
	Participants uint32
	PoolBalance  uint64
}

// RandomnessSource derives the 32-byte seed of a distribution.
type RandomnessSource interface {
	Seed(in EntropyInput) [32]byte
}

// BlockEntropy hashes block metadata together with pool state.
//
// Security note: every input is known to, or chosen by, the block proposer.
// A proposer can withhold or reorder blocks to bias the outcome. This is only
// acceptable for low-stakes pools; production should plug in a beacon or
// commit-reveal RandomnessSource.
type BlockEntropy struct{}

func (BlockEntropy) Seed(in EntropyInput) [32]byte {
	var h8, t8, r8, b8 [8]byte
	var n4 [4]byte
	binary.LittleEndian.PutUint64(h8[:], uint64(in.Height))
	binary.LittleEndian.PutUint64(t8[:], uint64(in.Time))
	binary.LittleEndian.PutUint64(r8[:], in.RoundID)
	binary.LittleEndian.PutUint64(b8[:], in.PoolBalance)
	binary.LittleEndian.PutUint32(n4[:], in.Participants)
	return hashDomain(entropyDomain,
		[]byte(in.ChainID),
		h8[:],
		t8[:],
		in.BlockHash,
		in.Proposer,
		r8[:],
		n4[:],
		b8[:],
	)
}

// FixedSeed returns the same seed for every draw. Useful for replaying a known
// beacon output.
type FixedSeed [32]byte

func (f FixedSeed) Seed(EntropyInput) [32]byte { return f }

func hashDomain(domain string, parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write([]byte(domain))

	// Length-prefix each part to avoid ambiguous concatenations.
	var lenBuf [4]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(p)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// selectIndex maps the seed, read as a big-endian 256-bit integer, onto [0,n).
func selectIndex(seed [32]byte, n int) int {
	v := new(big.Int).SetBytes(seed[:])
	return int(v.Mod(v, big.NewInt(int64(n))).Int64())
}

// drawNumbers returns the first k values of a deterministic Fisher-Yates
// shuffle of 1..n, driven by sha256(seed||counter).
func drawNumbers(seed [32]byte, n int, k int) []uint32 {
	deck := make([]uint32, n)
	for i := range deck {
		deck[i] = uint32(i + 1)
	}
	var counter uint64
	var buf [32 + 8]byte
	copy(buf[:32], seed[:])
	for i := n - 1; i > 0; i-- {
		binary.LittleEndian.PutUint64(buf[32:], counter)
		h := sha256.Sum256(buf[:])
		counter++
		j := int(binary.LittleEndian.Uint64(h[:8]) % uint64(i+1))
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck[:k]
}
