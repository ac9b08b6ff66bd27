//go:build !darwin

package backend

import (
	"errors"

	"golang.org/x/oauth2"
)

// ErrKeychainUnavailable is returned where no system keychain is wired up
var ErrKeychainUnavailable = errors.New("keychain is only available on macOS")

// keychainTokens has nowhere to keep tokens off macOS; use SetTokenStore
type keychainTokens struct{}

func (keychainTokens) Load() (*oauth2.Token, error) { return nil, ErrKeychainUnavailable }

func (keychainTokens) Save(*oauth2.Token) error { return ErrKeychainUnavailable }

func (keychainTokens) Delete() error { return ErrKeychainUnavailable }
