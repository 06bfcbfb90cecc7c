package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/engcrypto"
)

func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage account keys and the network key",
	}
	cmd.AddCommand(keysAddCmd(), keysShowCmd(), keysNetworkCmd())
	return cmd
}

func keysAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Generate an ed25519 account key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			path := accountKeyPath(home, args[0])
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key %q already exists at %s", args[0], path)
			}
			_, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			if err := writeSecret(path, priv.Seed()); err != nil {
				return err
			}
			return printAccount(cmd, args[0], priv)
		},
	}
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the address and public key of an account key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			priv, err := readAccountKey(home, args[0])
			if err != nil {
				return err
			}
			return printAccount(cmd, args[0], priv)
		},
	}
}

func keysNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Generate the network key pair and print the public key for genesis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := cfg.Relay.KeyFile
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("network key already exists at %s", path)
			}
			x, pk, err := engcrypto.GenerateKeyPair(rand.Reader)
			if err != nil {
				return err
			}
			if err := writeSecret(path, x.Bytes()); err != nil {
				return err
			}
			cmd.Printf("network key: %s\nsecret written to %s\n", engcrypto.BytesToHex(pk.Bytes()), path)
			return nil
		},
	}
	cmd.Flags().String("relay-key-file", "", "where to write the secret key")
	return cmd
}

func printAccount(cmd *cobra.Command, name string, priv ed25519.PrivateKey) error {
	pub := priv.Public().(ed25519.PublicKey)
	cmd.Printf("name:    %s\naddress: %s\npubkey:  %s\n", name, codec.AddressFromPubKey(pub), hex.EncodeToString(pub))
	return nil
}

func accountKeyPath(home, name string) string {
	return filepath.Join(home, "keys", name+".key")
}

func writeSecret(path string, secret []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(secret)+"\n"), 0o600)
}

func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func readAccountKey(home, name string) (ed25519.PrivateKey, error) {
	seed, err := readHexFile(accountKeyPath(home, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no key named %q; create one with `engd keys add %s`", name, name)
	}
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key %q: expected %d byte seed", name, ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func readNetworkSecret(path string) (engcrypto.Scalar, error) {
	b, err := readHexFile(path)
	if err != nil {
		return engcrypto.Scalar{}, fmt.Errorf("network key: %w", err)
	}
	x, err := engcrypto.ScalarFromBytesCanonical(b)
	if err != nil {
		return engcrypto.Scalar{}, fmt.Errorf("network key: %w", err)
	}
	return x, nil
}
