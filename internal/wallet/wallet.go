// Package wallet loads signing identities from the environment or an encrypted keystore.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrNoWallets is returned when no key source yields a wallet.
var ErrNoWallets = errors.New("no wallets configured")

// Wallet is one signing identity. Immutable after load.
type Wallet struct {
	Address common.Address
	Source  string // env var or keystore file it came from
	key     *ecdsa.PrivateKey
}

// FromHex parses a hex private key (with / without 0x). The key itself is never echoed in errors.
func FromHex(source, s string) (*Wallet, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if h == "" {
		return nil, fmt.Errorf("%s: empty private key", source)
	}
	prv, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed private key", source)
	}
	return FromKey(source, prv), nil
}

func FromKey(source string, prv *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		Address: gethcrypto.PubkeyToAddress(prv.PublicKey),
		Source:  source,
		key:     prv,
	}
}

// PrivateKey exposes the key for transaction signing.
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey { return w.key }

// Short renders 0x1234...abcd for log lines.
func (w *Wallet) Short() string {
	h := w.Address.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// LoadEnv collects keys from WALLET_* variables (sorted by name), PRIVATE_KEYS (comma list)
// and PRIVATE_KEY. environ has the os.Environ() shape.
func LoadEnv(environ []string) ([]*Wallet, error) {
	vars := make(map[string]string, len(environ))
	var walletVars []string
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		vars[k] = v
		if strings.HasPrefix(k, "WALLET_") && k != "WALLET_INDEX" {
			walletVars = append(walletVars, k)
		}
	}
	sort.Strings(walletVars)

	var out []*Wallet
	for _, k := range walletVars {
		if strings.TrimSpace(vars[k]) == "" {
			continue
		}
		w, err := FromHex(k, vars[k])
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if list := strings.TrimSpace(vars["PRIVATE_KEYS"]); list != "" {
		for i, part := range strings.Split(list, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			w, err := FromHex(fmt.Sprintf("PRIVATE_KEYS[%d]", i), part)
			if err != nil {
				return nil, err
			}
			out = append(out, w)
		}
	}
	if single := strings.TrimSpace(vars["PRIVATE_KEY"]); single != "" {
		w, err := FromHex("PRIVATE_KEY", single)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return Dedup(out), nil
}

// Dedup drops repeated addresses, keeping the first occurrence.
func Dedup(ws []*Wallet) []*Wallet {
	seen := make(map[common.Address]struct{}, len(ws))
	out := ws[:0:0]
	for _, w := range ws {
		if _, dup := seen[w.Address]; dup {
			continue
		}
		seen[w.Address] = struct{}{}
		out = append(out, w)
	}
	return out
}

// LoadKeystore decrypts every key file in dir with passphrase.
func LoadKeystore(dir, passphrase string) ([]*Wallet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var out []*Wallet
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", name, err)
		}
		key, err := keystore.DecryptKey(blob, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt key file %s: %w", name, err)
		}
		out = append(out, FromKey(name, key.PrivateKey))
	}
	return Dedup(out), nil
}

// ImportHex stores a hex key in dir encrypted with passphrase.
// scryptN/scryptP are keystore.StandardScryptN/P in production.
func ImportHex(dir, hexKey, passphrase string, scryptN, scryptP int) (common.Address, error) {
	w, err := FromHex("input", hexKey)
	if err != nil {
		return common.Address{}, err
	}
	ks := keystore.NewKeyStore(dir, scryptN, scryptP)
	if ks.HasAddress(w.Address) {
		return w.Address, fmt.Errorf("address %s already in keystore", w.Address.Hex())
	}
	acc, err := ks.ImportECDSA(w.key, passphrase)
	if err != nil {
		return common.Address{}, fmt.Errorf("import key: %w", err)
	}
	return acc.Address, nil
}

// ListKeystore returns the addresses stored in dir without decrypting them.
func ListKeystore(dir string) []common.Address {
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	accs := ks.Accounts()
	out := make([]common.Address, 0, len(accs))
	for _, a := range accs {
		out = append(out, a.Address)
	}
	return out
}

// Select keeps only the 1-based index n.
func Select(ws []*Wallet, n int) ([]*Wallet, error) {
	if n < 1 || n > len(ws) {
		return nil, fmt.Errorf("wallet index %d out of range 1..%d", n, len(ws))
	}
	return []*Wallet{ws[n-1]}, nil
}

// Shuffle reorders ws in place using swap-style shuffler (math/rand/v2 *Rand satisfies it).
func Shuffle(ws []*Wallet, shuffle func(n int, swap func(i, j int))) {
	shuffle(len(ws), func(i, j int) { ws[i], ws[j] = ws[j], ws[i] })
}
