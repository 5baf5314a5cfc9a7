package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/pulseofpeople/sessionkit/pkg/authtest"
	"github.com/pulseofpeople/sessionkit/pkg/config"
)

func toAccount(a config.MockAccount) authtest.Account {
	return authtest.Account{
		Username:     a.Username,
		Email:        a.Email,
		Password:     a.Password,
		Role:         a.Role,
		Permissions:  a.Permissions,
		Organization: a.Organization,
		Ward:         a.Ward,
		Constituency: a.Constituency,
	}
}

// seedAccounts upserts every configured account and returns how many were new
func seedAccounts(srv *authtest.Server, accounts []config.MockAccount, logger *logrus.Logger) int {
	added := 0
	for _, a := range accounts {
		_, created := srv.UpsertAccount(toAccount(a))
		if created {
			added++
			logger.Infof("Seeded account %s <%s> (role: %s)", a.Username, a.Email, a.Role)
		} else {
			logger.Infof("Updated account %s <%s> (role: %s)", a.Username, a.Email, a.Role)
		}
	}
	return added
}

// watchAccounts re-seeds accounts whenever the config file at path changes.
// The parent directory is watched so editors that replace the file on save
// are still picked up. Accounts removed from the file stay registered.
func watchAccounts(ctx context.Context, path string, srv *authtest.Server, logger *logrus.Logger) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				cfg := config.Default()
				if err := cfg.LoadFile(path); err != nil {
					logger.Warnf("Ignoring config change: %v", err)
					continue
				}
				added := seedAccounts(srv, cfg.Mock.Accounts, logger)
				logger.Infof("Reloaded %d accounts from %s (%d new)", len(cfg.Mock.Accounts), path, added)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("Watcher error: %v", err)
			}
		}
	}()

	return nil
}
