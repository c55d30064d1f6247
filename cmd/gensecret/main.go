package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

func secret() (string, error) {
	b := make([]byte, SecretKeyBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// Print access and refresh secret keys in .env format
func main() {
	for _, key := range []string{"SECRET_KEY", "REFRESH_SECRET_KEY"} {
		value, err := secret()
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", key, value)
	}
}
