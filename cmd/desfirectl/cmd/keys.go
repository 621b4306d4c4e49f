package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nfc-tools/go_desfire/internal/blockcipher"
	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/internal/desfirecrypto"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate and inspect DESFire key material",
}

// keyFile is the shape loaded from --keyfile: a named set of hex keys,
// mirroring how barnettlynn-nfctools loads its SDM key material.
type keyFile struct {
	Keys map[string]string `yaml:"keys"`
}

func loadKeyFile(path string) (keyFile, error) {
	var kf keyFile

	raw, err := os.ReadFile(path)
	if err != nil {
		return kf, fmt.Errorf("read keyfile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &kf); err != nil {
		return kf, fmt.Errorf("parse keyfile: %w", err)
	}

	return kf, nil
}

func keyLenForType(t commands.KeyType) (int, error) {
	switch t {
	case commands.KeyTypeDES:
		return 8, nil
	case commands.KeyType3K3DES:
		return 24, nil
	case commands.KeyTypeAES:
		return 16, nil
	default:
		return 0, fmt.Errorf("unknown key type")
	}
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random key (DES parity bits cleared) and print it with its KCV",
	RunE: func(c *cobra.Command, _ []string) error {
		typeStr, _ := c.Flags().GetString("type")

		keyType, err := keyTypeFromFlag(typeStr)
		if err != nil {
			return err
		}

		length, err := keyLenForType(keyType)
		if err != nil {
			return err
		}

		key := make([]byte, length)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if keyType != commands.KeyTypeAES {
			key = desfirecrypto.ClearParityBits(key)
		}

		kcv, err := keyCheckValue(keyType, key)
		if err != nil {
			return err
		}

		fmt.Printf("key:  %s\n", hex.EncodeToString(key))
		fmt.Printf("kcv:  %s\n", hex.EncodeToString(kcv))

		return nil
	},
}

var keysCheckCmd = &cobra.Command{
	Use:   "check <hex-key>",
	Short: "Check a key's DES parity and print its KCV",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		typeStr, _ := c.Flags().GetString("type")

		keyType, err := keyTypeFromFlag(typeStr)
		if err != nil {
			return err
		}

		key, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex key: %w", err)
		}

		if keyType != commands.KeyTypeAES {
			cleared := desfirecrypto.ClearParityBits(key)
			if hex.EncodeToString(cleared) == hex.EncodeToString(key) {
				fmt.Println("parity: ok")
			} else {
				fmt.Println("parity: mismatch (showing corrected key below)")
				fmt.Printf("corrected: %s\n", hex.EncodeToString(cleared))
			}
		}

		kcv, err := keyCheckValue(keyType, key)
		if err != nil {
			return err
		}
		fmt.Printf("kcv: %s\n", hex.EncodeToString(kcv))

		return nil
	},
}

// keyCheckValue encrypts a zero block under key and returns the first three
// bytes, the conventional KCV used to fingerprint a key without exposing it.
func keyCheckValue(t commands.KeyType, key []byte) ([]byte, error) {
	var zero, out []byte

	switch t {
	case commands.KeyTypeDES:
		zero = make([]byte, 8)
		enc, err := blockcipher.DesEncrypt(zero, key)
		if err != nil {
			return nil, err
		}
		out = enc
	case commands.KeyType3K3DES:
		zero = make([]byte, 8)
		enc, err := blockcipher.Des3Encrypt(zero, key)
		if err != nil {
			return nil, err
		}
		out = enc
	case commands.KeyTypeAES:
		zero = make([]byte, 16)
		enc, err := blockcipher.AesEcbEncrypt(zero, key)
		if err != nil {
			return nil, err
		}
		out = enc
	default:
		return nil, fmt.Errorf("unknown key type")
	}

	if len(out) < 3 {
		return out, nil
	}

	return out[:3], nil
}

var keysShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a named key and its KCV from --keyfile",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		path, _ := c.Flags().GetString("keyfile")
		if path == "" {
			return fmt.Errorf("--keyfile is required")
		}
		typeStr, _ := c.Flags().GetString("type")

		keyType, err := keyTypeFromFlag(typeStr)
		if err != nil {
			return err
		}

		kf, err := loadKeyFile(path)
		if err != nil {
			return err
		}

		keyHex, ok := kf.Keys[args[0]]
		if !ok {
			return fmt.Errorf("no key named %q in %s", args[0], path)
		}

		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return fmt.Errorf("invalid hex key for %q: %w", args[0], err)
		}

		kcv, err := keyCheckValue(keyType, key)
		if err != nil {
			return err
		}

		fmt.Printf("key:  %s\n", keyHex)
		fmt.Printf("kcv:  %s\n", hex.EncodeToString(kcv))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysCheckCmd, keysShowCmd)

	for _, c := range []*cobra.Command{keysGenerateCmd, keysCheckCmd, keysShowCmd} {
		c.Flags().String("type", "aes", "key type: des, 3k3des, or aes")
	}
	keysCmd.PersistentFlags().String("keyfile", "", "YAML file of named keys (keys: {name: hex})")
}
