package service

import "math/rand"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 6
)

// CodeGenerator produces short-code candidates. Candidates are random, not
// unique; callers must check them against the store and retry on collision.
type CodeGenerator interface {
	Candidate() string
}

type randomGenerator struct{}

// NewCodeGenerator returns the default generator: 6 characters out of a
// 62-symbol alphabet (~56.8 billion combinations). Non-cryptographic
// randomness is fine here, uniqueness comes from the store check.
func NewCodeGenerator() CodeGenerator {
	return randomGenerator{}
}

func (randomGenerator) Candidate() string {
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(buf)
}
