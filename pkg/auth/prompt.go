package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptCredentials asks for a username and password on the terminal.
// The password is read without echo. When username is non-empty only
// the password is prompted for.
func PromptCredentials(username string) (*Account, error) {
	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Instagram username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
		if username == "" {
			return nil, errors.New("username is required")
		}
	}

	fmt.Printf("Password for %s: ", username)
	password, err := readPassword()
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return nil, errors.New("password is required")
	}

	return &Account{
		Username: username,
		Password: string(password),
	}, nil
}

func readPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		return term.ReadPassword(fd)
	}

	// Piped input, read a line instead.
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(line)), nil
}
