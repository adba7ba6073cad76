package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/diverge/internal/op"
)

// ResetGovernance clears all governance tables and seeds the contract row
// and one zeroed row per tracked auxiliary entity. Called once per run.
func (s *Store) ResetGovernance(ctx context.Context, startLevel int64, handles []op.Handle) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"gov_contract", "gov_proposals", "gov_votes", "gov_frozen", "gov_aux", "gov_fees"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gov_contract (id, level, balance) VALUES (1, ?, 0)
		`, startLevel); err != nil {
			return fmt.Errorf("seed contract: %w", err)
		}
		for _, h := range handles {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gov_aux (handle, balance, storage) VALUES (?, 0, '{}')
			`, string(h)); err != nil {
				return fmt.Errorf("seed aux %s: %w", h, err)
			}
		}
		return nil
	})
}

// GovLevel returns the system's logical clock value.
func (s *Store) GovLevel(ctx context.Context) (int64, error) {
	var level int64
	if err := s.db.QueryRowContext(ctx, `SELECT level FROM gov_contract WHERE id = 1`).Scan(&level); err != nil {
		return 0, fmt.Errorf("gov level: %w", err)
	}
	return level, nil
}

// AdvanceGovLevel moves the system's logical clock forward by n levels.
func (s *Store) AdvanceGovLevel(ctx context.Context, n int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE gov_contract SET level = level + ? WHERE id = 1`, n); err != nil {
		return fmt.Errorf("advance gov level: %w", err)
	}
	return nil
}

// GovBalance returns the contract's balance.
func (s *Store) GovBalance(ctx context.Context) (int64, error) {
	var balance int64
	if err := s.db.QueryRowContext(ctx, `SELECT balance FROM gov_contract WHERE id = 1`).Scan(&balance); err != nil {
		return 0, fmt.Errorf("gov balance: %w", err)
	}
	return balance, nil
}

// CreditGovBalance adds delta (which may be negative) to the contract
// balance.
func (s *Store) CreditGovBalance(ctx context.Context, delta int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE gov_contract SET balance = balance + ? WHERE id = 1`, delta); err != nil {
		return fmt.Errorf("credit gov balance: %w", err)
	}
	return nil
}

// CreditFee records funding credited to a sender so a submission can be
// paid for. Fees never appear in observables.
func (s *Store) CreditFee(ctx context.Context, sender string, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gov_fees (sender, credit) VALUES (?, ?)
		ON CONFLICT(sender) DO UPDATE SET credit = credit + excluded.credit
	`, sender, amount)
	if err != nil {
		return fmt.Errorf("credit fee: %w", err)
	}
	return nil
}

// ProposalExists reports whether a proposal with the given ID was recorded.
func (s *Store) ProposalExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM gov_proposals WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("proposal exists: %w", err)
	}
	return true, nil
}

// InsertProposal records a new proposal with zero tallies.
func (s *Store) InsertProposal(ctx context.Context, id, proposer string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO gov_proposals (id, proposer) VALUES (?, ?)
	`, id, proposer); err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// HasVoted reports whether the sender already voted on the proposal.
func (s *Store) HasVoted(ctx context.Context, proposal, sender string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM gov_votes WHERE proposal = ? AND sender = ?
	`, proposal, sender).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has voted: %w", err)
	}
	return true, nil
}

// FrozenAmount returns the sender's frozen stake, zero when none.
func (s *Store) FrozenAmount(ctx context.Context, sender string) (int64, error) {
	var amount int64
	err := s.db.QueryRowContext(ctx, `SELECT amount FROM gov_frozen WHERE sender = ?`, sender).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("frozen amount: %w", err)
	}
	return amount, nil
}

// AddFrozen adds to the sender's frozen stake.
func (s *Store) AddFrozen(ctx context.Context, sender string, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gov_frozen (sender, amount) VALUES (?, ?)
		ON CONFLICT(sender) DO UPDATE SET amount = amount + excluded.amount
	`, sender, amount)
	if err != nil {
		return fmt.Errorf("add frozen: %w", err)
	}
	return nil
}

// RecordVote inserts the vote and bumps the matching tally column by the
// sender's vote weight, atomically.
func (s *Store) RecordVote(ctx context.Context, proposal, sender, ballot string, weight int64) error {
	var tallyUpdate string
	switch ballot {
	case "yay":
		tallyUpdate = `UPDATE gov_proposals SET yay = yay + ? WHERE id = ?`
	case "nay":
		tallyUpdate = `UPDATE gov_proposals SET nay = nay + ? WHERE id = ?`
	case "pass":
		tallyUpdate = `UPDATE gov_proposals SET pass = pass + ? WHERE id = ?`
	default:
		return fmt.Errorf("record vote: unknown ballot %q", ballot)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gov_votes (proposal, sender, ballot) VALUES (?, ?, ?)
		`, proposal, sender, ballot); err != nil {
			return fmt.Errorf("record vote: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tallyUpdate, weight, proposal); err != nil {
			return fmt.Errorf("record vote tally: %w", err)
		}
		return nil
	})
}

// ProposalTally returns a proposal's tallies.
func (s *Store) ProposalTally(ctx context.Context, id string) (yay, nay, pass int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT yay, nay, pass FROM gov_proposals WHERE id = ?
	`, id).Scan(&yay, &nay, &pass)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("proposal tally: %w", err)
	}
	return yay, nay, pass, nil
}

// AuxStorage returns one auxiliary entity's storage map.
func (s *Store) AuxStorage(ctx context.Context, handle op.Handle) (map[string]any, error) {
	var storage string
	err := s.db.QueryRowContext(ctx, `SELECT storage FROM gov_aux WHERE handle = ?`, string(handle)).Scan(&storage)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("aux %s not found", handle)
	}
	if err != nil {
		return nil, fmt.Errorf("aux storage: %w", err)
	}
	return decodeStorage(storage)
}

// SetAuxStorage replaces one auxiliary entity's storage map.
func (s *Store) SetAuxStorage(ctx context.Context, handle op.Handle, m map[string]any) error {
	encoded, err := encodeStorage(m)
	if err != nil {
		return fmt.Errorf("set aux storage: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE gov_aux SET storage = ? WHERE handle = ?`, encoded, string(handle))
	if err != nil {
		return fmt.Errorf("set aux storage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set aux storage: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set aux storage: aux %s not found", handle)
	}
	return nil
}

// TransferToAux atomically debits the contract and credits the entity.
func (s *Store) TransferToAux(ctx context.Context, handle op.Handle, amount int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE gov_contract SET balance = balance - ? WHERE id = 1
		`, amount); err != nil {
			return fmt.Errorf("transfer debit: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE gov_aux SET balance = balance + ? WHERE handle = ?
		`, amount, string(handle))
		if err != nil {
			return fmt.Errorf("transfer credit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("transfer credit: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("transfer credit: aux %s not found", handle)
		}
		return nil
	})
}

// GovObservables reconstructs the system's observable tuple from the
// governance tables. The storage shape mirrors the reference model's:
// proposals with tallies, votes by proposal, and frozen stake by sender.
func (s *Store) GovObservables(ctx context.Context, handles []op.Handle) (op.ObservableSet, error) {
	var obs op.ObservableSet

	var level int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT level, balance FROM gov_contract WHERE id = 1
	`).Scan(&level, &obs.Balance); err != nil {
		return obs, fmt.Errorf("gov observables: contract: %w", err)
	}

	proposals := map[string]any{}
	rows, err := s.db.QueryContext(ctx, `SELECT id, proposer, yay, nay, pass FROM gov_proposals`)
	if err != nil {
		return obs, fmt.Errorf("gov observables: proposals: %w", err)
	}
	for rows.Next() {
		var id, proposer string
		var yay, nay, pass int64
		if err := rows.Scan(&id, &proposer, &yay, &nay, &pass); err != nil {
			rows.Close()
			return obs, fmt.Errorf("gov observables: proposals: %w", err)
		}
		proposals[id] = map[string]any{"proposer": proposer, "yay": yay, "nay": nay, "pass": pass}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return obs, fmt.Errorf("gov observables: proposals: %w", err)
	}
	rows.Close()

	votes := map[string]any{}
	rows, err = s.db.QueryContext(ctx, `SELECT proposal, sender, ballot FROM gov_votes`)
	if err != nil {
		return obs, fmt.Errorf("gov observables: votes: %w", err)
	}
	for rows.Next() {
		var proposal, sender, ballot string
		if err := rows.Scan(&proposal, &sender, &ballot); err != nil {
			rows.Close()
			return obs, fmt.Errorf("gov observables: votes: %w", err)
		}
		byProposal, ok := votes[proposal].(map[string]any)
		if !ok {
			byProposal = map[string]any{}
			votes[proposal] = byProposal
		}
		byProposal[sender] = ballot
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return obs, fmt.Errorf("gov observables: votes: %w", err)
	}
	rows.Close()

	frozen := map[string]any{}
	rows, err = s.db.QueryContext(ctx, `SELECT sender, amount FROM gov_frozen`)
	if err != nil {
		return obs, fmt.Errorf("gov observables: frozen: %w", err)
	}
	for rows.Next() {
		var sender string
		var amount int64
		if err := rows.Scan(&sender, &amount); err != nil {
			rows.Close()
			return obs, fmt.Errorf("gov observables: frozen: %w", err)
		}
		frozen[sender] = amount
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return obs, fmt.Errorf("gov observables: frozen: %w", err)
	}
	rows.Close()

	obs.Storage = map[string]any{"proposals": proposals, "votes": votes, "frozen": frozen}

	obs.Aux = make(map[op.Handle]op.AuxState, len(handles))
	for _, h := range handles {
		var balance int64
		var storage string
		err := s.db.QueryRowContext(ctx, `
			SELECT balance, storage FROM gov_aux WHERE handle = ?
		`, string(h)).Scan(&balance, &storage)
		if err == sql.ErrNoRows {
			// Leaving the entity out makes the engine fault, which is
			// the contract for an unresolvable handle.
			continue
		}
		if err != nil {
			return obs, fmt.Errorf("gov observables: aux %s: %w", h, err)
		}
		m, err := decodeStorage(storage)
		if err != nil {
			return obs, fmt.Errorf("gov observables: aux %s: %w", h, err)
		}
		obs.Aux[h] = op.AuxState{Storage: m, Balance: balance}
	}

	return obs, nil
}
