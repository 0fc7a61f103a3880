package crypto

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var ErrDigestMismatch = errors.New("digest mismatch")

// Hash is a blake2b-256 digest used to identify build artifacts.
type Hash [32]byte

var ZeroHash Hash

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%x\"", h[:])), nil
}

func Blake2B256(data ...[]byte) Hash {
	// never returns an error if key is nil
	h, _ := blake2b.New256(nil)
	for _, chunk := range data {
		h.Write(chunk)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func HashReader(r io.Reader) (Hash, error) {
	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, r); err != nil {
		return ZeroHash, err
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

func HashFile(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return ZeroHash, errors.Wrap(err, "error opening file for hashing")
	}
	defer f.Close()
	return HashReader(f)
}

func NewHashFromHex(in string) (Hash, error) {
	b, err := hex.DecodeString(in)
	if err != nil {
		return ZeroHash, err
	}
	if len(b) != 32 {
		return ZeroHash, errors.New("hash must be 32 bytes")
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// VerifyFile hashes path and compares the result against the hex digest
// want. The computed digest is returned in both cases.
func VerifyFile(path string, want string) (Hash, error) {
	expected, err := NewHashFromHex(want)
	if err != nil {
		return ZeroHash, errors.Wrap(err, "invalid expected digest")
	}
	got, err := HashFile(path)
	if err != nil {
		return ZeroHash, err
	}
	if got != expected {
		return got, errors.Wrapf(ErrDigestMismatch, "%s is %s, expected %s", path, got, expected)
	}
	return got, nil
}
