// This file contains commit history operations.
package gitvault

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

// Commit is one entry in the vault's history.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Email   string
	When    time.Time

	// Kind and Scope carry the conventional-commit header when the
	// message parses as one ("chore"/"sync" for engine-generated
	// commits), empty otherwise.
	Kind  string
	Scope string
}

// History returns up to limit commits, most recent first. It never blocks
// on the network. A limit of 0 returns the full history.
func (v *Vault) History(ctx context.Context, limit int) ([]Commit, error) {
	iter, err := v.repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, errs.Wrap(err, "failed to read history")
	}
	defer iter.Close()

	ccParser := parser.NewMachine(conventionalcommits.WithTypes(conventionalcommits.TypesConventional))

	var out []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		entry := Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
		}

		header, _, _ := strings.Cut(c.Message, "\n")
		if msg, parseErr := ccParser.Parse([]byte(header)); parseErr == nil {
			if cc, ok := msg.(*conventionalcommits.ConventionalCommit); ok {
				entry.Kind = cc.Type
				if cc.Scope != nil {
					entry.Scope = *cc.Scope
				}
			}
		}

		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, errs.Wrap(err, "failed to iterate history")
	}

	return out, nil
}

var errStopIteration = errors.New("stop iteration")
