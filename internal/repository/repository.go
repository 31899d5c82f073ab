// Package repository handles all interactions with the database.
//
// It contains raw SQL queries and methods to fetch, persist,
// or update data, abstracting SQL logic away from the service layer.
//
// "not found" errors are wrapped as "table:<name>: ..." so sqlerr.HandleError
// can name the missing entity.
package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Users     *UserRepository
	Campaigns *CampaignRepository
}

// NewRepositories constructs the repository container on top of pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:     NewUserRepository(pool),
		Campaigns: NewCampaignRepository(pool),
	}
}

func notFound(table string, err error) error {
	return fmt.Errorf("table:%s: %w", table, err)
}

// collectOne scans exactly one row into T by column name.
func collectOne[T any](rows pgx.Rows, table string) (*T, error) {
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(table, err)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}
