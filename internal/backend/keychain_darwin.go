//go:build darwin

package backend

import (
	"errors"
	"fmt"

	"github.com/keybase/go-keychain"
	"golang.org/x/oauth2"
)

// keychainTokens keeps Dropbox tokens as one generic password item in the
// login keychain, never synced to iCloud
type keychainTokens struct{}

func tokenQuery() keychain.Item {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(KeychainService)
	item.SetAccount(keychainAccount)
	return item
}

func (keychainTokens) Load() (*oauth2.Token, error) {
	query := tokenQuery()
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return nil, fmt.Errorf("keychain lookup: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoStoredToken
	}
	return decodeTokens(results[0].Data)
}

func (keychainTokens) Save(token *oauth2.Token) error {
	data, err := encodeTokens(token)
	if err != nil {
		return err
	}

	update := keychain.NewItem()
	update.SetData(data)
	err = keychain.UpdateItem(tokenQuery(), update)
	if err == nil {
		return nil
	}
	if !errors.Is(err, keychain.ErrorItemNotFound) {
		return fmt.Errorf("keychain update: %w", err)
	}

	item := tokenQuery()
	item.SetLabel("clipshelf Dropbox tokens")
	item.SetData(data)
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleAfterFirstUnlockThisDeviceOnly)
	if err := keychain.AddItem(item); err != nil {
		return fmt.Errorf("keychain add: %w", err)
	}
	return nil
}

func (keychainTokens) Delete() error {
	err := keychain.DeleteItem(tokenQuery())
	if err != nil && !errors.Is(err, keychain.ErrorItemNotFound) {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}
