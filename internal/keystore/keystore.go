// Package keystore creates test accounts and keeps signing keys encrypted
// at rest.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var (
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupted file")
	ErrExists          = errors.New("keystore: file already exists")
	ErrEmptyPassphrase = errors.New("keystore: passphrase is empty")
)

const (
	fileVersion = 1
	kdfName     = "scrypt"
	saltSize    = 32
	nonceSize   = 24
	keySize     = 32
)

// scrypt cost parameters. Tests lower scryptN.
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Account is a freshly generated test account. The mnemonic is the only
// copy of the key the caller gets back.
type Account struct {
	Address   string `json:"address"`
	Mnemonic  string `json:"mnemonic"`
	FaucetURL string `json:"faucet_url,omitempty"`
}

// NewAccount generates a key pair. faucet is the dispenser base URL; the
// account address is appended as a query parameter.
func NewAccount(faucet string) (Account, ed25519.PrivateKey, error) {
	acct := crypto.GenerateAccount()
	words, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	if err != nil {
		return Account{}, nil, fmt.Errorf("failed to encode mnemonic: %w", err)
	}
	address := acct.Address.String()
	return Account{
		Address:   address,
		Mnemonic:  words,
		FaucetURL: faucetURL(faucet, address),
	}, acct.PrivateKey, nil
}

func faucetURL(base, address string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("account", address)
	u.RawQuery = q.Encode()
	return u.String()
}

// FromMnemonic recovers a signing key from its 25-word mnemonic.
func FromMnemonic(words string) (ed25519.PrivateKey, error) {
	key, err := mnemonic.ToPrivateKey(strings.Join(strings.Fields(words), " "))
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return key, nil
}

// Address returns the account address of key.
func Address(key ed25519.PrivateKey) (string, error) {
	acct, err := crypto.AccountFromPrivateKey(key)
	if err != nil {
		return "", err
	}
	return acct.Address.String(), nil
}

type encryptedFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	KDF        string `json:"kdf"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Save encrypts key with passphrase and writes it to path. An existing file
// is never overwritten.
func Save(path string, key ed25519.PrivateKey, passphrase []byte) (string, error) {
	if len(passphrase) == 0 {
		return "", ErrEmptyPassphrase
	}
	address, err := Address(key)
	if err != nil {
		return "", fmt.Errorf("keystore: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("keystore: failed to read salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("keystore: failed to read nonce: %w", err)
	}
	secret, err := deriveKey(passphrase, salt, scryptN, scryptR, scryptP)
	if err != nil {
		return "", err
	}
	defer wipe(secret[:])

	ef := encryptedFile{
		Version:    fileVersion,
		Address:    address,
		KDF:        kdfName,
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
		Ciphertext: base64.StdEncoding.EncodeToString(secretbox.Seal(nil, key, &nonce, secret)),
	}
	data, err := json.MarshalIndent(ef, "", "  ")
	if err != nil {
		return "", fmt.Errorf("keystore: failed to encode file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		return "", fmt.Errorf("keystore: failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("keystore: failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("keystore: failed to close %s: %w", path, err)
	}
	return address, nil
}

// Load decrypts the key stored at path. The caller owns the returned key
// and should Wipe it when done.
func Load(path string, passphrase []byte) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read %s: %w", path, err)
	}
	var ef encryptedFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("keystore: malformed file %s: %w", path, err)
	}
	if ef.Version != fileVersion || ef.KDF != kdfName {
		return nil, fmt.Errorf("keystore: unsupported file version %d (%s)", ef.Version, ef.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(ef.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore: malformed salt: %w", err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(ef.Nonce)
	if err != nil || len(nonceBytes) != nonceSize {
		return nil, errors.New("keystore: malformed nonce")
	}
	sealed, err := base64.StdEncoding.DecodeString(ef.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("keystore: malformed ciphertext: %w", err)
	}

	secret, err := deriveKey(passphrase, salt, ef.N, ef.R, ef.P)
	if err != nil {
		return nil, err
	}
	defer wipe(secret[:])

	var nonce [nonceSize]byte
	copy(nonce[:], nonceBytes)
	plain, ok := secretbox.Open(nil, sealed, &nonce, secret)
	if !ok || len(plain) != ed25519.PrivateKeySize {
		return nil, ErrWrongPassphrase
	}
	key := ed25519.PrivateKey(plain)

	if address, err := Address(key); err != nil || address != ef.Address {
		Wipe(key)
		return nil, ErrWrongPassphrase
	}
	return key, nil
}

func deriveKey(passphrase, salt []byte, n, r, p int) (*[keySize]byte, error) {
	derived, err := scrypt.Key(passphrase, salt, n, r, p, keySize)
	if err != nil {
		return nil, fmt.Errorf("keystore: key derivation failed: %w", err)
	}
	var secret [keySize]byte
	copy(secret[:], derived)
	wipe(derived)
	return &secret, nil
}

// Wipe zeroes key in place.
func Wipe(key ed25519.PrivateKey) {
	wipe(key)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
