package store

import (
	"context"
	"errors"
	"time"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

// ErrNotFound is returned by the lookups below when no row matches.
var ErrNotFound = errors.New("store: not found")

// UserIDFromSource resolves user_source.source_id -> user_id.
func (g *Gateway) UserIDFromSource(ctx context.Context, sourceID int64) (int64, error) {
	var userID int64
	err := g.FetchVal(ctx, &userID,
		`SELECT user_id FROM user_source WHERE source_id = $1`, sourceID)
	if errors.Is(err, ErrNoRows) {
		return 0, ErrNotFound
	}
	return userID, err
}

// HasMatchingBoletoTransaction reports whether the user has a boleto
// transaction within 0.01 of installmentAmount, per §4.8.
func (g *Gateway) HasMatchingBoletoTransaction(ctx context.Context, userID int64, installmentAmount float64) (bool, error) {
	var count int
	err := g.FetchVal(ctx, &count, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1
		  AND transaction_type = 'boleto'
		  AND ABS(amount - $2) < 0.01
	`, userID, installmentAmount)
	return count > 0, err
}

// Bank is one row of the banks table.
type Bank struct {
	ID   int64
	Name string
}

// ListBanks returns every known bank, for the LLM-assisted company match.
func (g *Gateway) ListBanks(ctx context.Context) ([]Bank, error) {
	rows, err := g.FetchAll(ctx, `SELECT id, name FROM banks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []Bank
	for rows.Next() {
		var b Bank
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

// InsertBank adds a new bank row and returns its id.
func (g *Gateway) InsertBank(ctx context.Context, name string) (int64, error) {
	var id int64
	err := g.FetchVal(ctx, &id,
		`INSERT INTO banks (name) VALUES ($1) RETURNING id`, name)
	return id, err
}

// UpsertOfferScaffoldParams are the fields needed to seed a
// bank_financing_offers row right after verification, before the Matcher
// has resolved a rate.
type UpsertOfferScaffoldParams struct {
	BankID           int64
	UserID           int64
	Month            int
	Year             int
	InstallmentsCount int
}

// MonthYearFromCurrentInstallment derives the scaffold row's month/year by
// subtracting (currentInstallmentNumber-1) months from now, per §4.8.
func MonthYearFromCurrentInstallment(now time.Time, currentInstallmentNumber int) (month int, year int) {
	start := now.AddDate(0, -(currentInstallmentNumber - 1), 0)
	return int(start.Month()), start.Year()
}

// UpsertOfferScaffold inserts a placeholder offer row keyed on
// (bank_id, user_id, month, year, installments_count), leaving offered=false.
// It is a no-op if a row with that key already exists.
func (g *Gateway) UpsertOfferScaffold(ctx context.Context, p UpsertOfferScaffoldParams) error {
	_, err := g.Execute(ctx, `
		INSERT INTO bank_financing_offers
			(bank_id, user_id, month, year, installments_count, offered)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (bank_id, user_id, month, year, installments_count) DO NOTHING
	`, p.BankID, p.UserID, p.Month, p.Year, p.InstallmentsCount)
	return err
}

// UserMetadata, Account rows, etc., used by the Enricher.

// UserMetadataRow fetches the user_metadata row as a loosely-typed map so
// the Enricher can forward it unchanged regardless of schema evolution.
func (g *Gateway) UserMetadataRow(ctx context.Context, userID int64) (map[string]any, error) {
	rows, err := g.FetchAll(ctx, `SELECT * FROM user_metadata WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return map[string]any{}, rows.Err()
	}

	fields := rows.FieldDescriptions()
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields))
	for i, f := range fields {
		out[string(f.Name)] = values[i]
	}
	return out, rows.Err()
}

// AccountRow fetches balance/credit_limit/credit_usage, zero-filled if the
// account is missing, per §3's enriched-envelope invariant.
func (g *Gateway) AccountRow(ctx context.Context, userID int64) (pipeline.Account, error) {
	var a pipeline.Account
	err := g.FetchOne(ctx, `
		SELECT balance, credit_limit, credit_usage FROM accounts WHERE user_id = $1
	`, userID).Scan(&a.Balance, &a.CreditLimit, &a.CreditUsage)
	if errors.Is(err, ErrNoRows) {
		return pipeline.Account{}, nil
	}
	return a, err
}

// TransactionHistory returns the user's full transaction history.
func (g *Gateway) TransactionHistory(ctx context.Context, userID int64) ([]pipeline.Transaction, error) {
	rows, err := g.FetchAll(ctx, `
		SELECT id, amount, transaction_type, EXTRACT(EPOCH FROM created_at)::bigint * 1000
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pipeline.Transaction
	for rows.Next() {
		var t pipeline.Transaction
		if err := rows.Scan(&t.ID, &t.Amount, &t.TransactionType, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InvestmentHistory returns the user's investment rows.
func (g *Gateway) InvestmentHistory(ctx context.Context, userID int64) ([]pipeline.Investment, error) {
	rows, err := g.FetchAll(ctx, `
		SELECT id, kind, amount FROM investments WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pipeline.Investment
	for rows.Next() {
		var inv pipeline.Investment
		if err := rows.Scan(&inv.ID, &inv.Kind, &inv.Amount); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// CatalogOffer is one candidate row from financing_types, per §3.
type CatalogOffer struct {
	ID        int64
	Name      string
	TaxMes    float64
	MaxAmount float64
	Type      string
}

// BestCatalogOffer finds the cheapest eligible product for the given
// financing type, current monthly rate and remaining amount, per §3's
// matching predicate.
func (g *Gateway) BestCatalogOffer(ctx context.Context, financingType string, currentRatePercent float64, remainingAmount float64) (*CatalogOffer, error) {
	var o CatalogOffer
	err := g.FetchOne(ctx, `
		SELECT id, name, tax_mes, max_amount, type
		FROM financing_types
		WHERE type = $1 AND tax_mes < $2 AND max_amount >= $3
		ORDER BY tax_mes ASC
		LIMIT 1
	`, financingType, currentRatePercent/100.0, remainingAmount).Scan(
		&o.ID, &o.Name, &o.TaxMes, &o.MaxAmount, &o.Type)
	if errors.Is(err, ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// BankIDForScaffold finds the bank_id the Verifier recorded when it seeded
// the scaffold row for this (user_id, installments_count), so the Matcher
// can finalize the same row instead of guessing a bank.
func (g *Gateway) BankIDForScaffold(ctx context.Context, userID int64, installmentsCount int) (int64, error) {
	var bankID int64
	err := g.FetchVal(ctx, &bankID, `
		SELECT bank_id FROM bank_financing_offers
		WHERE user_id = $1 AND installments_count = $2 AND offered = false
		ORDER BY year DESC, month DESC
		LIMIT 1
	`, userID, installmentsCount)
	if errors.Is(err, ErrNoRows) {
		return 0, ErrNotFound
	}
	return bankID, err
}

// FinalizeOfferParams identifies and fills the bank_financing_offers row
// the Matcher finalizes once a catalog match is found.
type FinalizeOfferParams struct {
	BankID                int64
	UserID                int64
	InstallmentsCount     int
	AssetValue            float64
	MonthlyInterestRate   float64
	OfferedInterestRate   float64
}

// FinalizeOffer flips offered=false -> true for the (bank_id, user_id,
// installments_count) row, applying the duplicate-suppression rule from
// §3: if an offered=true row already exists with identical key fields, no
// new write happens.
func (g *Gateway) FinalizeOffer(ctx context.Context, p FinalizeOfferParams) error {
	var alreadyOffered int
	err := g.FetchVal(ctx, &alreadyOffered, `
		SELECT COUNT(*) FROM bank_financing_offers
		WHERE bank_id = $1 AND user_id = $2 AND asset_value = $3
		  AND monthly_interest_rate = $4 AND installments_count = $5
		  AND offered_interest_rate = $6 AND offered = true
	`, p.BankID, p.UserID, p.AssetValue, p.MonthlyInterestRate, p.InstallmentsCount, p.OfferedInterestRate)
	if err != nil {
		return err
	}
	if alreadyOffered > 0 {
		return nil
	}

	_, err = g.Execute(ctx, `
		UPDATE bank_financing_offers
		SET asset_value = $3, monthly_interest_rate = $4, offered_interest_rate = $6, offered = true
		WHERE bank_id = $1 AND user_id = $2 AND installments_count = $5
	`, p.BankID, p.UserID, p.AssetValue, p.MonthlyInterestRate, p.InstallmentsCount, p.OfferedInterestRate)
	return err
}

// FinalizedOffer is the joined row the Read API exposes.
type FinalizedOffer struct {
	BankID              int64
	BankName            string
	UserID              int64
	AssetValue          float64
	MonthlyInterestRate float64
	InstallmentsCount   int
	OfferedInterestRate float64
	Month               int
	Year                int
}

// ListFinalizedOffers returns offered=true rows joined with banks, newest
// (by year/month) first, for the Read API's GET /api/offers.
func (g *Gateway) ListFinalizedOffers(ctx context.Context) ([]FinalizedOffer, error) {
	rows, err := g.FetchAll(ctx, `
		SELECT o.bank_id, b.name, o.user_id, o.asset_value, o.monthly_interest_rate,
		       o.installments_count, o.offered_interest_rate, o.month, o.year
		FROM bank_financing_offers o
		JOIN banks b ON b.id = o.bank_id
		WHERE o.offered = true
		ORDER BY o.year DESC, o.month DESC, o.user_id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinalizedOffer
	for rows.Next() {
		var f FinalizedOffer
		if err := rows.Scan(&f.BankID, &f.BankName, &f.UserID, &f.AssetValue,
			&f.MonthlyInterestRate, &f.InstallmentsCount, &f.OfferedInterestRate, &f.Month, &f.Year); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
