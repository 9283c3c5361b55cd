package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/shibest/mycelius/internal/formatter"
	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/shared"
	"github.com/shibest/mycelius/internal/similarity"
)

func readCandidates(path string) ([]models.CandidateProfile, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: candidates file", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	var candidates []models.CandidateProfile
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("%w: candidates must be a JSON array: %v", shared.ErrInvalidInput, err)
	}
	if err := models.ValidateCandidates(candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// SimilarityScore ranks the candidates in a JSON file against the stored profile.
func (r *Runner) SimilarityScore(ctx context.Context, cmd *cli.Command) error {
	candidates, err := readCandidates(cmd.StringArg("candidates"))
	if err != nil {
		return err
	}

	settings, err := r.Settings()
	if err != nil {
		return err
	}
	profile, err := settings.Profile()
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: no profile saved, run 'profile set' first", shared.ErrMissingConfig)
	}

	svc, err := r.Similarity(ctx)
	if err != nil {
		return err
	}

	scores := svc.CalculateBatchSimilarity(ctx, *profile, candidates)
	return r.render(cmd, formatter.RankingsTable(similarity.Rank(scores, candidates)))
}

// SimilarityClear drops every cached score batch.
func (r *Runner) SimilarityClear(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.Similarity(ctx)
	if err != nil {
		return err
	}
	n, err := svc.ClearSimilarityCache(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Cleared %d cached entries\n", n)
}
