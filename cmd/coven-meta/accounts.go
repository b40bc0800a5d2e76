// ABOUTME: Builds driver accounts from the configured account list
// ABOUTME: Matrix accounts get a client each; memory accounts share one loopback network

package main

import (
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/config"
	"github.com/2389/coven-meta/internal/driver"
	"github.com/2389/coven-meta/internal/driver/matrix"
	"github.com/2389/coven-meta/internal/driver/memory"
)

type accountSet struct {
	all    []driver.Account
	matrix []*matrix.Account
	memory *memory.Network
}

func buildAccounts(cfgs []config.AccountConfig, logger *slog.Logger) (*accountSet, error) {
	set := &accountSet{}

	for i, ac := range cfgs {
		switch ac.Driver {
		case config.DriverMatrix:
			acc, err := matrix.NewAccount(matrix.Config{
				Homeserver:  ac.Homeserver,
				UserID:      ac.ID,
				AccessToken: ac.AccessToken,
				DeviceID:    ac.DeviceID,
				Contacts:    ac.Contacts,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("accounts[%d]: %w", i, err)
			}
			set.matrix = append(set.matrix, acc)
			set.all = append(set.all, acc)

		case config.DriverMemory:
			if set.memory == nil {
				set.memory = memory.NewNetwork(memory.DefaultDriverName, memory.WithLogger(logger))
			}
			acc := set.memory.NewAccount(ac.ID)
			for _, c := range ac.Contacts {
				acc.AddContact(driver.Contact{ID: set.memory.ID(c), DisplayName: c})
			}
			set.all = append(set.all, acc)

		default:
			return nil, fmt.Errorf("accounts[%d]: unknown driver %q", i, ac.Driver)
		}
	}

	logger.Info("accounts configured",
		"total", len(set.all),
		"drivers", lo.Uniq(lo.Map(set.all, func(a driver.Account, _ int) string { return a.DriverName() })))
	return set, nil
}

func (s *accountSet) Close() {
	for _, m := range s.matrix {
		m.Close()
	}
	if s.memory != nil {
		s.memory.Close()
	}
}
